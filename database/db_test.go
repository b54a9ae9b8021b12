package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresConfig_ConnString(t *testing.T) {
	tests := []struct {
		name    string
		cfg     PostgresConfig
		want    string
		wantErr bool
	}{
		{
			name: "dsn wins",
			cfg:  PostgresConfig{DSN: "postgres://u:p@db/todo", Host: "ignored"},
			want: "postgres://u:p@db/todo",
		},
		{
			name: "fields with defaults",
			cfg:  PostgresConfig{Host: "db", User: "todo", Password: "secret", Name: "todoboard"},
			want: "host=db port=5432 user=todo password='secret' dbname=todoboard sslmode=disable",
		},
		{
			name: "password with quote and space",
			cfg:  PostgresConfig{Host: "db", Port: "6543", User: "todo", Password: "it's a pw", Name: "todoboard", SSLMode: "require"},
			want: `host=db port=6543 user=todo password='it\'s a pw' dbname=todoboard sslmode=require`,
		},
		{
			name:    "missing host",
			cfg:     PostgresConfig{User: "todo", Name: "todoboard"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.ConnString()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_File(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(context.Background(), Options{Backend: BackendFile, DataDir: dir})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, BackendFile, db.Backend)
	assert.Equal(t, dir, db.Where)

	users, err := db.Users.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "mongo"})
	assert.ErrorContains(t, err, `unknown storage backend "mongo"`)
}
