package state

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/config"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
)

// Backend persists checkpoints outside the message stream
type Backend interface {
	// Name identifies the backend in logs and metrics
	Name() string
	// Load returns the last checkpoint, or nil when none exists
	Load(ctx context.Context) (*State, error)
	// Save replaces the checkpoint
	Save(ctx context.Context, state *State) error
	Close() error
}

// NewBackend creates the backend selected by cfg. It returns nil when no
// backend is configured.
func NewBackend(ctx context.Context, cfg config.StateConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "file":
		return NewFileBackend(cfg.Path), nil
	case "s3":
		b, err := NewS3Backend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "gcs":
		b, err := NewGCSBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "postgres":
		b, err := NewPostgresBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported state backend: %s", cfg.Backend)
}

// FileBackend keeps the checkpoint in a local file. Saves replace the file
// atomically.
type FileBackend struct {
	path string
}

// NewFileBackend creates a file backend writing to path
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Name implements Backend
func (b *FileBackend) Name() string { return "file" }

// Load implements Backend
func (b *FileBackend) Load(_ context.Context) (*State, error) {
	if _, err := os.Stat(b.path); stderrors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return LoadStateFile(b.path)
}

// Save implements Backend
func (b *FileBackend) Save(_ context.Context, st *State) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create state directory").WithDetail("path", dir)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create temp state file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // removed by rename on success

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write state file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close state file")
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to replace state file").WithDetail("path", b.path)
	}
	return nil
}

// Close implements Backend
func (b *FileBackend) Close() error { return nil }
