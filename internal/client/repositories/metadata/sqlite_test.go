package metadata

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:metadata_tests?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS metadata (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);
DELETE FROM metadata;
`)
	require.NoError(t, err)
	return db
}

func TestSQLiteRepository_SetGet(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupDB(t))

	require.NoError(t, repo.Set(ctx, "session", []byte(`{"access_token":"abc"}`)))

	got, err := repo.Get(ctx, "session")
	require.NoError(t, err)
	require.Equal(t, []byte(`{"access_token":"abc"}`), got)
}

func TestSQLiteRepository_SetOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupDB(t))

	require.NoError(t, repo.Set(ctx, "session", []byte("old")))
	require.NoError(t, repo.Set(ctx, "session", []byte("new")))

	got, err := repo.Get(ctx, "session")
	require.NoError(t, err)
	require.Equal(t, []byte("new"), got)
}

func TestSQLiteRepository_GetMissingKey(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupDB(t))

	got, err := repo.Get(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSQLiteRepository_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupDB(t))

	require.NoError(t, repo.Set(ctx, "session", []byte("v")))
	require.NoError(t, repo.Delete(ctx, "session"))
	require.NoError(t, repo.Delete(ctx, "session"))

	got, err := repo.Get(ctx, "session")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSQLiteRepository_Clear(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupDB(t))

	require.NoError(t, repo.Set(ctx, "a", []byte("1")))
	require.NoError(t, repo.Set(ctx, "b", []byte("2")))
	require.NoError(t, repo.Clear(ctx))

	for _, k := range []string{"a", "b"} {
		got, err := repo.Get(ctx, k)
		require.NoError(t, err)
		require.Nil(t, got)
	}
}
