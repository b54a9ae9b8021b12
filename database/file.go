package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileCollection stores records as a pretty-printed JSON array in a single
// file. The collection's mutex is the single writer for that file, so
// concurrent Update calls in one process never lose each other's changes.
// Separate processes sharing the file are still last-writer-wins.
type FileCollection[T any] struct {
	name string
	path string
	mu   sync.RWMutex
}

// NewFileCollection creates dir if needed and returns the collection backed by dir/name.json.
func NewFileCollection[T any](dir, name string) (*FileCollection[T], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &StorageError{Collection: name, Op: "init", Err: err}
	}
	return &FileCollection[T]{
		name: name,
		path: filepath.Join(dir, name+".json"),
	}, nil
}

// Path returns the backing file.
func (c *FileCollection[T]) Path() string {
	return c.path
}

// Load reads every record. A missing or empty file is an empty collection.
func (c *FileCollection[T]) Load(ctx context.Context) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.read(ctx)
}

// Update loads, applies fn and rewrites the whole file when fn reports a change.
func (c *FileCollection[T]) Update(ctx context.Context, fn func([]T) ([]T, bool, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.read(ctx)
	if err != nil {
		return err
	}
	next, changed, err := fn(records)
	if err != nil || !changed {
		return err
	}
	return c.write(ctx, next)
}

func (c *FileCollection[T]) read(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, &StorageError{Collection: c.name, Op: "read", Err: err}
	}
	records, err := decodeRecords[T](data)
	if err != nil {
		return nil, &StorageError{Collection: c.name, Op: "decode", Err: err}
	}
	return records, nil
}

// write replaces the file atomically: temp file in the same directory, fsync, rename.
func (c *FileCollection[T]) write(ctx context.Context, records []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeRecords(records, true)
	if err != nil {
		return &StorageError{Collection: c.name, Op: "encode", Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), "."+c.name+"-*.json")
	if err != nil {
		return &StorageError{Collection: c.name, Op: "write", Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &StorageError{Collection: c.name, Op: "write", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &StorageError{Collection: c.name, Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &StorageError{Collection: c.name, Op: "write", Err: err}
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return &StorageError{Collection: c.name, Op: "write", Err: err}
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return &StorageError{Collection: c.name, Op: "write", Err: fmt.Errorf("replace %s: %w", c.path, err)}
	}
	return nil
}
