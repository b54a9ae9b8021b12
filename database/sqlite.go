package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// document is one collection stored as a JSON array in a single row.
type document struct {
	Name      string `gorm:"primaryKey;type:text"`
	Body      string `gorm:"not null;type:text"`
	UpdatedAt time.Time
}

// TableName returns the table name for collection documents.
func (document) TableName() string {
	return "collections"
}

// OpenSQLite opens (creating if needed) the SQLite database at path and migrates the schema.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&document{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// SQLiteCollection keeps a collection in one row of the collections table.
// SQLite allows a single writer at a time; the mutex keeps this process from
// tripping over its own busy errors.
type SQLiteCollection[T any] struct {
	db   *gorm.DB
	name string
	mu   sync.Mutex
}

// NewSQLiteCollection returns the collection stored under name.
func NewSQLiteCollection[T any](db *gorm.DB, name string) *SQLiteCollection[T] {
	return &SQLiteCollection[T]{db: db, name: name}
}

// Load reads the collection; a missing row is an empty collection.
func (c *SQLiteCollection[T]) Load(ctx context.Context) ([]T, error) {
	body, err := c.body(c.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords[T]([]byte(body))
	if err != nil {
		return nil, &StorageError{Collection: c.name, Op: "decode", Err: err}
	}
	return records, nil
}

// Update runs fn inside a transaction and upserts the document when it changed.
func (c *SQLiteCollection[T]) Update(ctx context.Context, fn func([]T) ([]T, bool, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		body, err := c.body(tx)
		if err != nil {
			return err
		}
		records, err := decodeRecords[T]([]byte(body))
		if err != nil {
			return &StorageError{Collection: c.name, Op: "decode", Err: err}
		}

		next, changed, err := fn(records)
		if err != nil || !changed {
			return err
		}

		data, err := encodeRecords(next, false)
		if err != nil {
			return &StorageError{Collection: c.name, Op: "encode", Err: err}
		}
		doc := document{Name: c.name, Body: string(data), UpdatedAt: time.Now()}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&doc).Error; err != nil {
			return &StorageError{Collection: c.name, Op: "write", Err: err}
		}
		return nil
	})
}

func (c *SQLiteCollection[T]) body(db *gorm.DB) (string, error) {
	var doc document
	err := db.First(&doc, "name = ?", c.name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", &StorageError{Collection: c.name, Op: "read", Err: err}
	}
	return doc.Body, nil
}
