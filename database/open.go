package database

import (
	"context"
	"fmt"

	"github.com/abefas/todoboard/models"
)

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

const (
	usersCollection = "users"
	tasksCollection = "tasks"
)

// Options selects and configures a backend.
type Options struct {
	Backend    string
	DataDir    string
	SQLitePath string
	Postgres   PostgresConfig
}

// DB bundles the two collections the application persists.
type DB struct {
	Users   Collection[models.User]
	Tasks   Collection[models.Task]
	Backend string
	// Where describes the storage location for logs. It never contains credentials.
	Where string

	close func() error
}

// Close releases the backend's connections.
func (d *DB) Close() error {
	if d == nil || d.close == nil {
		return nil
	}
	return d.close()
}

// Open constructs the users and tasks collections for the configured backend.
func Open(ctx context.Context, opts Options) (*DB, error) {
	switch opts.Backend {
	case "", BackendFile:
		users, err := NewFileCollection[models.User](opts.DataDir, usersCollection)
		if err != nil {
			return nil, err
		}
		tasks, err := NewFileCollection[models.Task](opts.DataDir, tasksCollection)
		if err != nil {
			return nil, err
		}
		return &DB{Users: users, Tasks: tasks, Backend: BackendFile, Where: opts.DataDir}, nil

	case BackendPostgres:
		sqlDB, err := InitDB(ctx, opts.Postgres)
		if err != nil {
			return nil, err
		}
		return &DB{
			Users:   NewPostgresCollection[models.User](sqlDB, usersCollection),
			Tasks:   NewPostgresCollection[models.Task](sqlDB, tasksCollection),
			Backend: BackendPostgres,
			Where:   opts.Postgres.where(),
			close:   sqlDB.Close,
		}, nil

	case BackendSQLite:
		gormDB, err := OpenSQLite(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &DB{
			Users:   NewSQLiteCollection[models.User](gormDB, usersCollection),
			Tasks:   NewSQLiteCollection[models.Task](gormDB, tasksCollection),
			Backend: BackendSQLite,
			Where:   opts.SQLitePath,
			close: func() error {
				sqlDB, err := gormDB.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
