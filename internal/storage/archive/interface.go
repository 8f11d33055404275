// internal/storage/archive/interface.go
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Read when nothing is stored at a path
var ErrNotFound = errors.New("archive: not found")

// Storage defines the interface for artifact storage backends holding
// trained models and backtest reports.
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths matching the prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Backend names accepted by New
const (
	BackendLocalFS = "localfs"
	BackendS3      = "s3"
)

// Config selects and configures a storage backend
type Config struct {
	Backend string   `mapstructure:"backend" yaml:"backend"`
	Path    string   `mapstructure:"path" yaml:"path"`
	S3      S3Config `mapstructure:"s3" yaml:"s3"`
}

// New creates the configured backend
func New(cfg Config) (Storage, error) {
	switch cfg.Backend {
	case "", BackendLocalFS:
		path := cfg.Path
		if path == "" {
			path = "artifacts"
		}
		return NewLocalFS(path)
	case BackendS3:
		if cfg.S3.Bucket == "" {
			return nil, errors.New("archive: s3 bucket is required")
		}
		return NewS3(cfg.S3)
	default:
		return nil, fmt.Errorf("archive: unknown backend %q", cfg.Backend)
	}
}

// WriteJSON marshals v with indentation and stores it at path
func WriteJSON(ctx context.Context, s Storage, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return s.Write(ctx, path, data)
}

// ReadJSON reads path and unmarshals it into v
func ReadJSON(ctx context.Context, s Storage, path string, v any) error {
	data, err := s.Read(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
