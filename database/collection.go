// Package database persists whole record collections. Every backend keeps a
// collection as one JSON array and rewrites it in full on each mutation.
package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Collection holds every record of one entity type.
type Collection[T any] interface {
	// Load returns all records in insertion order.
	Load(ctx context.Context) ([]T, error)
	// Update runs one read-modify-write cycle. fn receives the current records
	// and returns the replacement set plus whether anything changed; nothing is
	// written when changed is false or fn fails.
	Update(ctx context.Context, fn func(records []T) ([]T, bool, error)) error
}

// StorageError reports a failure of the persistence medium itself.
type StorageError struct {
	Collection string
	Op         string
	Err        error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func decodeRecords[T any](data []byte) ([]T, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []T{}, nil
	}
	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}

func encodeRecords[T any](records []T, pretty bool) ([]byte, error) {
	if records == nil {
		records = []T{}
	}
	if !pretty {
		return json.Marshal(records)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
