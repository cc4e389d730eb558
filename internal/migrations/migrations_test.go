package migrations

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_ContainsUsersMigration(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	assert.Contains(t, files, "00001_create_users.sql")

	body, err := fs.ReadFile(FS, "00001_create_users.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- +goose Up")
	assert.Contains(t, string(body), "-- +goose Down")
}

func TestUp_PropagatesError(t *testing.T) {
	orig := up
	defer func() { up = orig }()

	var gotDir string
	up = func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		gotDir = dir
		return errors.New("boom")
	}

	err := Up(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, ".", gotDir)
}
