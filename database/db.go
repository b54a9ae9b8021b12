package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

// PostgresConfig holds the connection parameters for the PostgreSQL backend.
// DSN wins over the individual fields when set.
type PostgresConfig struct {
	DSN      string `toml:"dsn"`
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	SSLMode  string `toml:"sslmode"`
}

// ConnString builds the lib/pq connection string.
func (c PostgresConfig) ConnString() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	if c.Host == "" || c.User == "" || c.Name == "" {
		return "", errors.New("postgres: host, user and name are required (or set a DSN)")
	}
	port := c.Port
	if port == "" {
		port = "5432"
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, port, c.User, quoteParam(c.Password), c.Name, sslMode), nil
}

// where names the server and database without credentials.
func (c PostgresConfig) where() string {
	if c.DSN != "" {
		return "DATABASE_URL"
	}
	return c.Host + "/" + c.Name
}

// quoteParam escapes a key/value connection parameter so passwords may contain spaces or quotes.
func quoteParam(v string) string {
	if v == "" {
		return "''"
	}
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
}

const createCollectionsTable = `
CREATE TABLE IF NOT EXISTS collections (
	name TEXT PRIMARY KEY,
	body JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// InitDB opens and pings PostgreSQL and ensures the collections table exists.
func InitDB(ctx context.Context, cfg PostgresConfig) (*sql.DB, error) {
	connStr, err := cfg.ConnString()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, createCollectionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create 'collections' table: %w", err)
	}
	return db, nil
}

// PostgresCollection keeps a collection as one JSONB document row. Update
// locks the row for the whole cycle, so concurrent writers queue instead of
// overwriting each other.
type PostgresCollection[T any] struct {
	db   *sql.DB
	name string
}

// NewPostgresCollection returns the collection stored under name.
func NewPostgresCollection[T any](db *sql.DB, name string) *PostgresCollection[T] {
	return &PostgresCollection[T]{db: db, name: name}
}

// Load reads the collection; a missing row is an empty collection.
func (c *PostgresCollection[T]) Load(ctx context.Context) ([]T, error) {
	var body []byte
	err := c.db.QueryRowContext(ctx, "SELECT body FROM collections WHERE name = $1", c.name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return []T{}, nil
	}
	if err != nil {
		return nil, &StorageError{Collection: c.name, Op: "read", Err: err}
	}
	records, err := decodeRecords[T](body)
	if err != nil {
		return nil, &StorageError{Collection: c.name, Op: "decode", Err: err}
	}
	return records, nil
}

// Update runs fn inside a transaction holding the collection row lock.
func (c *PostgresCollection[T]) Update(ctx context.Context, fn func([]T) ([]T, bool, error)) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Collection: c.name, Op: "begin", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO collections(name) VALUES($1) ON CONFLICT (name) DO NOTHING", c.name); err != nil {
		return &StorageError{Collection: c.name, Op: "init", Err: err}
	}

	var body []byte
	if err := tx.QueryRowContext(ctx,
		"SELECT body FROM collections WHERE name = $1 FOR UPDATE", c.name).Scan(&body); err != nil {
		return &StorageError{Collection: c.name, Op: "read", Err: err}
	}
	records, err := decodeRecords[T](body)
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
	if _, err := tx.ExecContext(ctx,
		"UPDATE collections SET body = $2, updated_at = NOW() WHERE name = $1", c.name, string(data)); err != nil {
		return &StorageError{Collection: c.name, Op: "write", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Collection: c.name, Op: "commit", Err: err}
	}
	return nil
}
