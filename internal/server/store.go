// store.go - Archive metadata store backed by a single JSON document.
//
// The archives document is a JSON array ordered newest-first; insertion
// order, not the createdAt field, is the source of truth for listing
// order. Every mutation is a full read-modify-write of the document,
// serialized through the store mutex so concurrent uploads and deletes
// cannot overwrite each other's writes. Listing still re-reads the file
// on every call, so edits made to it out of band show up on the next
// request.
package server

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Archive describes one uploaded ZIP file. Field names match the
// on-disk document so operators can hand-edit it.
type Archive struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalname"`
	CreatorName  string    `json:"creatorName"`
	Channel      string    `json:"channel"`
	Repo         string    `json:"repo"`
	MoreDetails  string    `json:"moreDetails"`
	Description  string    `json:"description"`
	Size         int64     `json:"size"`
	UploadedBy   string    `json:"uploadedBy"`
	CreatedAt    time.Time `json:"createdAt"`
	SHA256       string    `json:"sha256,omitempty"`
}

// ArchiveStore owns the archives document. Construct one at process
// start and pass it by handle; nothing else may write the file.
type ArchiveStore struct {
	path string
	mu   sync.Mutex
}

// NewArchiveStore returns a store persisting to the given file.
func NewArchiveStore(path string) *ArchiveStore {
	return &ArchiveStore{path: path}
}

// load reads the whole document. A missing or malformed file is an
// empty collection, never a fatal error.
func (s *ArchiveStore) load() ([]Archive, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Archive{}, nil
		}
		return nil, storageErr("read_archives", err)
	}

	var zips []Archive
	if err := json.Unmarshal(data, &zips); err != nil {
		logWarn("archives_document_malformed", map[string]any{"path": s.path})
		return []Archive{}, nil
	}
	if zips == nil {
		zips = []Archive{}
	}
	return zips, nil
}

// save overwrites the whole document via a temp file and rename, so a
// reader never observes a half-written document.
func (s *ArchiveStore) save(zips []Archive) error {
	data, err := json.MarshalIndent(zips, "", "  ")
	if err != nil {
		return storageErr("encode_archives", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".zips-*")
	if err != nil {
		return storageErr("write_archives", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return storageErr("write_archives", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return storageErr("write_archives", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return storageErr("write_archives", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return storageErr("write_archives", err)
	}
	return nil
}

// ListAll returns the current on-disk collection, newest first.
func (s *ArchiveStore) ListAll() ([]Archive, error) {
	return s.load()
}

// FindByID returns the record with the given id, if present.
func (s *ArchiveStore) FindByID(id string) (*Archive, bool, error) {
	zips, err := s.load()
	if err != nil {
		return nil, false, err
	}
	for i := range zips {
		if zips[i].ID == id {
			return &zips[i], true, nil
		}
	}
	return nil, false, nil
}

// InsertFront prepends a record and persists the full collection.
func (s *ArchiveStore) InsertFront(rec Archive) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	zips, err := s.load()
	if err != nil {
		return err
	}
	zips = append([]Archive{rec}, zips...)
	return s.save(zips)
}

// RemoveByID removes the record with the given id and persists the
// collection. The removed record is returned so the caller can delete
// its blob; ok is false when the id is unknown, in which case the
// document is left untouched.
func (s *ArchiveStore) RemoveByID(id string) (*Archive, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	zips, err := s.load()
	if err != nil {
		return nil, false, err
	}
	for i := range zips {
		if zips[i].ID != id {
			continue
		}
		removed := zips[i]
		zips = append(zips[:i], zips[i+1:]...)
		if err := s.save(zips); err != nil {
			return nil, false, err
		}
		return &removed, true, nil
	}
	return nil, false, nil
}
