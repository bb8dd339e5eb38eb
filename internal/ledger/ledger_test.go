package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestOpenMissingFileIsEmpty(t *testing.T) {
	l, err := Open(context.Background(), NewFileStore(filepath.Join(t.TempDir(), "missing.txt")), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, l.Len())
	assert.True(t, l.IsNew("https://example.org/a"))
}

func TestRecordIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.txt")
	ctx := context.Background()

	l, err := Open(ctx, NewFileStore(path), nil)
	require.NoError(t, err)

	l.Record("id-1")
	l.Record("id-1")
	l.Record(" id-1 ")
	l.Record("")

	assert.False(t, l.IsNew("id-1"))
	assert.Equal(t, 1, l.Pending())
	require.NoError(t, l.Flush(ctx))

	l.Record("id-1")
	assert.Equal(t, 0, l.Pending())
	require.NoError(t, l.Flush(ctx))

	assert.Equal(t, []string{"id-1"}, readLines(t, path))
}

func TestRecordMultilineIDSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.txt")
	ctx := context.Background()
	id := "https://x/a\nb"

	first, err := Open(ctx, NewFileStore(path), nil)
	require.NoError(t, err)
	first.Record(id)
	require.NoError(t, first.Flush(ctx))
	require.NoError(t, first.Close())

	assert.Equal(t, []string{"https://x/ab"}, readLines(t, path))

	second, err := Open(ctx, NewFileStore(path), nil)
	require.NoError(t, err)
	assert.False(t, second.IsNew(id))
	assert.Equal(t, 1, second.Len())
}

func TestFileStoreRejectsMultilineID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.txt")

	err := NewFileStore(path).Append(context.Background(), []string{"ok", "bad\r\nid"})
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "nothing should be written")
}

func TestLedgerSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.txt")
	ctx := context.Background()

	first, err := Open(ctx, NewFileStore(path), nil)
	require.NoError(t, err)
	first.Record("a")
	first.Record("b")
	require.NoError(t, first.Flush(ctx))
	require.NoError(t, first.Close())

	second, err := Open(ctx, NewFileStore(path), nil)
	require.NoError(t, err)
	assert.False(t, second.IsNew("a"))
	assert.False(t, second.IsNew("b"))
	assert.True(t, second.IsNew("c"))
	assert.Equal(t, 2, second.Len())
}

func TestUnflushedIdsAreNotDurable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.txt")
	ctx := context.Background()

	l, err := Open(ctx, NewFileStore(path), nil)
	require.NoError(t, err)
	l.Record("lost")
	require.NoError(t, l.Close())

	reopened, err := Open(ctx, NewFileStore(path), nil)
	require.NoError(t, err)
	assert.True(t, reopened.IsNew("lost"))
}

func TestFileStoreDeduplicatesOnLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\n\nb\na\n  c  \n"), 0o644))

	ids, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestFileStoreAppendsAfterUnterminatedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.txt")
	require.NoError(t, os.WriteFile(path, []byte("manual"), 0o644))

	require.NoError(t, NewFileStore(path).Append(context.Background(), []string{"next"}))
	assert.Equal(t, []string{"manual", "next"}, readLines(t, path))
}

func TestFlushAfterClose(t *testing.T) {
	l, err := Open(context.Background(), NewFileStore(filepath.Join(t.TempDir(), "l.txt")), nil)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l.Record("x")
	assert.ErrorIs(t, l.Flush(context.Background()), ErrClosed)
}

type failingStore struct {
	appended [][]string
	err      error
}

func (s *failingStore) Load(context.Context) ([]string, error) { return nil, nil }
func (s *failingStore) Close() error                           { return nil }
func (s *failingStore) Append(_ context.Context, ids []string) error {
	if s.err != nil {
		return s.err
	}
	s.appended = append(s.appended, append([]string(nil), ids...))
	return nil
}

func TestFlushFailureKeepsPending(t *testing.T) {
	store := &failingStore{err: errors.New("disk full")}
	l, err := Open(context.Background(), store, nil)
	require.NoError(t, err)

	l.Record("a")
	require.Error(t, l.Flush(context.Background()))
	assert.Equal(t, 1, l.Pending())

	store.err = nil
	require.NoError(t, l.Flush(context.Background()))
	assert.Equal(t, [][]string{{"a"}}, store.appended)
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	store, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)

	l, err := Open(ctx, store, nil)
	require.NoError(t, err)
	l.Record("b")
	l.Record("a")
	require.NoError(t, l.Flush(ctx))
	require.NoError(t, store.Append(ctx, []string{"a"}))
	require.NoError(t, l.Close())

	reopened, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	ids, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenStore(ctx, "", filepath.Join(dir, "l.txt"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = OpenStore(ctx, "SQLite", filepath.Join(dir, "l.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = OpenStore(ctx, "redis", filepath.Join(dir, "x"))
	assert.Error(t, err)

	_, err = OpenStore(ctx, BackendFile, " ")
	assert.Error(t, err)
}
