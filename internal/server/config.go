// config.go - Service configuration: YAML file, env overrides, validation.
package server

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "24h" decode.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config holds everything the server needs. Construct it once at
// process start and pass it down; handlers never read ambient globals
// for paths.
type Config struct {
	Addr       string `yaml:"addr"`
	DataDir    string `yaml:"data_dir"`
	UploadsDir string `yaml:"uploads_dir"`

	SessionTTL     Duration `yaml:"session_ttl"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`

	AllowCORS    bool     `yaml:"allow_cors"`
	PingInterval Duration `yaml:"ping_interval"` // zero disables the self-ping loop

	Version string `yaml:"-"`
}

// DefaultConfig returns the stock settings: port 3000, data/ and
// uploads/ beside the binary, 24h sessions, 200 MiB uploads.
func DefaultConfig() Config {
	return Config{
		Addr:           ":3000",
		DataDir:        "data",
		UploadsDir:     "uploads",
		SessionTTL:     Duration(24 * time.Hour),
		MaxUploadBytes: 200 << 20,
		Version:        "dev",
	}
}

// LoadConfig builds a Config from defaults, an optional YAML file, and
// ZIPHUB_* environment overrides, in that order.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ZIPHUB_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("ZIPHUB_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("ZIPHUB_UPLOADS_DIR"); v != "" {
		c.UploadsDir = v
	}
	if v := os.Getenv("ZIPHUB_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("ZIPHUB_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.SessionTTL = Duration(d)
		}
	}
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.DataDir == "" || c.UploadsDir == "" {
		return errors.New("data_dir and uploads_dir must not be empty")
	}
	if time.Duration(c.SessionTTL) <= 0 {
		return errors.New("session_ttl must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max_upload_bytes must be positive")
	}
	if time.Duration(c.PingInterval) < 0 {
		return errors.New("ping_interval must not be negative")
	}
	return nil
}
