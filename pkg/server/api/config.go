package api

import (
	"errors"
	"time"
)

var (
	// ErrInvalidTimeout is returned when a timeout value is negative.
	ErrInvalidTimeout = errors.New("invalid timeout: must be >= 0")
	// ErrInvalidUploadLimit is returned when the upload limit is not positive.
	ErrInvalidUploadLimit = errors.New("invalid upload limit: must be > 0")
)

// Config holds API-level configuration.
type Config struct {
	// HandlerTimeout bounds handlers that call upstream APIs directly
	// (NVD detail, Shodan account endpoints). It applies only when the
	// request context has no deadline yet. Task runs use their own timeout.
	HandlerTimeout time.Duration

	// UploadLimit caps the size of uploaded documents.
	UploadLimit int64
}

// DefaultConfig returns a 30s handler timeout and a 32 MiB upload limit.
func DefaultConfig() Config {
	return Config{
		HandlerTimeout: 30 * time.Second,
		UploadLimit:    32 << 20,
	}
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.HandlerTimeout < 0 {
		return ErrInvalidTimeout
	}
	if c.UploadLimit <= 0 {
		return ErrInvalidUploadLimit
	}
	return nil
}
