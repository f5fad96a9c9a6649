package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/notesync/internal/model"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
	"github.com/xxxsen/notesync/internal/pkg/timeutil"
	"github.com/xxxsen/notesync/internal/repo"
	"github.com/xxxsen/notesync/test/testutil"
)

func newNote(id, path string) *model.Note {
	now := timeutil.NowUnix()
	return &model.Note{
		ID:     id,
		BookID: "book-1",
		UserID: "user-1",
		Path:   path,
		Title:  "Title " + id,
		Body:   "body " + id,
		Scope:  model.NoteScopePublic,
		Ctime:  now,
		Mtime:  now,
	}
}

func TestNoteRepoUpsert(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	users := repo.NewUserRepo(db)
	books := repo.NewBookRepo(db)
	notes := repo.NewNoteRepo(db)
	seedUser(t, users, "user-1")
	require.NoError(t, books.Create(ctx, newBook("user-1", "book-1", "octo", "notes")))

	inserted, err := notes.Upsert(ctx, newNote("note-1", "a.md"))
	require.NoError(t, err)
	require.True(t, inserted)

	// Second write for the same path updates in place and keeps the id.
	replacement := newNote("note-2", "a.md")
	replacement.Title = "Updated"
	inserted, err = notes.Upsert(ctx, replacement)
	require.NoError(t, err)
	require.False(t, inserted)

	fetched, err := notes.GetByPath(ctx, "book-1", "a.md")
	require.NoError(t, err)
	require.Equal(t, "note-1", fetched.ID)
	require.Equal(t, "Updated", fetched.Title)

	paths, err := notes.ListPaths(ctx, "book-1")
	require.NoError(t, err)
	require.Equal(t, []string{"a.md"}, paths)
}

func TestNoteRepoDeleteByPath(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	users := repo.NewUserRepo(db)
	books := repo.NewBookRepo(db)
	notes := repo.NewNoteRepo(db)
	seedUser(t, users, "user-1")
	require.NoError(t, books.Create(ctx, newBook("user-1", "book-1", "octo", "notes")))

	_, err := notes.Upsert(ctx, newNote("note-1", "a.md"))
	require.NoError(t, err)

	removed, err := notes.DeleteByPath(ctx, "book-1", "a.md")
	require.NoError(t, err)
	require.True(t, removed)

	// Deleting an absent path is a quiet no-op.
	removed, err = notes.DeleteByPath(ctx, "book-1", "a.md")
	require.NoError(t, err)
	require.False(t, removed)

	_, err = notes.GetByPath(ctx, "book-1", "a.md")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestNoteRepoCascadeOnBookDelete(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	users := repo.NewUserRepo(db)
	books := repo.NewBookRepo(db)
	notes := repo.NewNoteRepo(db)
	records := repo.NewPostRecordRepo(db)
	seedUser(t, users, "user-1")
	require.NoError(t, books.Create(ctx, newBook("user-1", "book-1", "octo", "notes")))

	_, err := notes.Upsert(ctx, newNote("note-1", "a.md"))
	require.NoError(t, err)
	require.NoError(t, records.Create(ctx, &model.PostRecord{
		ID:       "rec-1",
		NoteID:   "note-1",
		Platform: "bluesky",
		Status:   model.PostStatusPosted,
		PostURI:  "at://did:plc:abc/app.bsky.feed.post/1",
		PostCID:  "bafyreia",
		Ctime:    timeutil.NowUnix(),
	}))

	require.NoError(t, books.Delete(ctx, "user-1", "book-1"))

	paths, err := notes.ListPaths(ctx, "book-1")
	require.NoError(t, err)
	require.Empty(t, paths)

	list, err := records.ListByNote(ctx, "note-1")
	require.NoError(t, err)
	require.Empty(t, list)
}
