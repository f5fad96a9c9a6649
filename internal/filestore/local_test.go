package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStoreArchive(t *testing.T) {
	dir := t.TempDir()
	store, err := New("local", map[string]interface{}{"dir": dir})
	require.NoError(t, err)

	err = store.Archive(context.Background(), "book-1/notes/a.md@1700000000", []byte("# Hello"))
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "book-1/notes/a.md@1700000000"))
	require.NoError(t, err)
	require.Equal(t, "# Hello", string(content))
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store, err := New("local", map[string]interface{}{"dir": t.TempDir()})
	require.NoError(t, err)

	require.Error(t, store.Archive(context.Background(), "../outside", []byte("x")))
	require.Error(t, store.Archive(context.Background(), "/etc/passwd", []byte("x")))
}

func TestNewUnknownStoreType(t *testing.T) {
	_, err := New("does-not-exist", nil)
	require.Error(t, err)
}

func TestLocalStoreRequiresDir(t *testing.T) {
	_, err := New("local", map[string]interface{}{})
	require.Error(t, err)
}
