package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"
)

// FileKV stores one file per key under a directory. Writes go to a temp
// file that is synced and renamed into place.
type FileKV struct {
	dir string
	log *zap.Logger
	mu  sync.Mutex
}

// NewFileKV creates the directory if needed.
func NewFileKV(dir string, log *zap.Logger) (*FileKV, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FileKV{dir: dir, log: log.With(zap.String("storage_dir", dir))}, nil
}

// Dir returns the backing directory.
func (f *FileKV) Dir() string { return f.dir }

// Get reads the value for key.
func (f *FileKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	path, err := f.pathFor(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			f.log.Debug("storage load miss", zap.String("key", key))
			return nil, false, nil
		}
		f.log.Warn("storage load failed", zap.String("key", key), zap.Error(err))
		return nil, false, err
	}
	return data, true, nil
}

// Set atomically replaces the value for key.
func (f *FileKV) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.pathFor(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := writeAtomic(path, value); err != nil {
		f.log.Warn("storage save failed", zap.String("key", key), zap.Error(err))
		return err
	}
	f.log.Debug("storage save ok", zap.String("key", key), zap.Int("bytes", len(value)))
	return nil
}

// Delete removes key. Missing keys are not an error.
func (f *FileKV) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.pathFor(key)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "kv-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (f *FileKV) pathFor(key string) (string, error) {
	name := sanitize(key)
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(f.dir, name+".json"), nil
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
