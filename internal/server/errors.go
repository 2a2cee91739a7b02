// errors.go - Error classification and JSON response helpers.
//
// Handlers report failures to clients as a JSON body of the form
// {"error": "<short message>"} with the matching HTTP status. The
// short messages are part of the API surface and stay stable; detail
// goes to the log, never to the client.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized marks authentication failures so callers can branch
// on the class without matching message text.
var ErrUnauthorized = errors.New("unauthorized")

// StorageError wraps an I/O failure against the data or uploads
// directory with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logError("encode_response", nil, err)
		http.Error(w, `{"error":"server"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError sends the standard error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
