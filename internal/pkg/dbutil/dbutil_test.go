package dbutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFinalizeRebindsPlaceholders(t *testing.T) {
	query, args := Finalize("SELECT id FROM books WHERE owner=? AND repo=?", []interface{}{"octo", "notes"})
	require.Equal(t, "SELECT id FROM books WHERE owner=$1 AND repo=$2", query)
	require.Equal(t, []interface{}{"octo", "notes"}, args)
}

func TestFinalizeRewritesLimit(t *testing.T) {
	query, args := Finalize("SELECT id FROM notes WHERE book_id=? LIMIT ?,?", []interface{}{"book-1", 10, 20})
	require.Equal(t, "SELECT id FROM notes WHERE book_id=$1 LIMIT $2 OFFSET $3", query)
	// gendry emits offset,count; postgres wants count before offset.
	require.Equal(t, []interface{}{"book-1", 20, 10}, args)
}

func TestFinalizeWithoutLimit(t *testing.T) {
	query, args := Finalize("DELETE FROM notes WHERE id=?", []interface{}{"note-1"})
	require.Equal(t, "DELETE FROM notes WHERE id=$1", query)
	require.Len(t, args, 1)
}
