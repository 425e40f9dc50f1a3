package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dbawebdesign/lailms-ingest/storage"
)

func newTestRepos(t *testing.T) (storage.DocumentRepository, storage.ChunkRepository, storage.SummaryRepository) {
	t.Helper()

	docs, chunks, summaries, store, err := NewTestRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		os.RemoveAll(filepath.Dir(store.Path()))
	})
	return docs, chunks, summaries
}

func TestNewStoreCreatesDatabase(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(store.Path())
	require.NoError(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening the same directory replays no migrations.
	store, err = NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}
