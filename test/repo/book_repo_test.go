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

func seedUser(t *testing.T, users *repo.UserRepo, id string) {
	t.Helper()
	now := timeutil.NowUnix()
	require.NoError(t, users.Create(context.Background(), &model.User{
		ID:           id,
		Email:        id + "@example.com",
		PasswordHash: "hash",
		Ctime:        now,
		Mtime:        now,
	}))
}

func newBook(userID, id, owner, repoName string) *model.Book {
	now := timeutil.NowUnix()
	return &model.Book{
		ID:             id,
		UserID:         userID,
		Owner:          owner,
		Repo:           repoName,
		InstallationID: 42,
		WebhookSecret:  "secret-" + id,
		Ctime:          now,
		Mtime:          now,
	}
}

func TestBookRepoLifecycle(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	users := repo.NewUserRepo(db)
	books := repo.NewBookRepo(db)
	status := repo.NewSyncStatusRepo(db)
	seedUser(t, users, "user-1")

	require.NoError(t, books.Create(ctx, newBook("user-1", "book-1", "octo", "notes")))

	// Creating a book provisions its status row in the same transaction.
	st, err := status.Get(ctx, "book-1")
	require.NoError(t, err)
	require.Equal(t, model.SyncStatusWaiting, st.Status)
	require.Nil(t, st.LastSyncedAt)

	fetched, err := books.GetByOwnerRepo(ctx, "octo", "notes")
	require.NoError(t, err)
	require.Equal(t, "book-1", fetched.ID)
	require.Equal(t, "secret-book-1", fetched.WebhookSecret)

	_, err = books.GetByOwnerRepo(ctx, "octo", "other")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	list, err := books.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, books.Delete(ctx, "user-1", "book-1"))
	_, err = books.GetByID(ctx, "book-1")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = status.Get(ctx, "book-1")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestBookRepoDuplicateOwnerRepo(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	users := repo.NewUserRepo(db)
	books := repo.NewBookRepo(db)
	seedUser(t, users, "user-1")

	require.NoError(t, books.Create(ctx, newBook("user-1", "book-1", "octo", "notes")))
	err := books.Create(ctx, newBook("user-1", "book-2", "octo", "notes"))
	require.ErrorIs(t, err, appErr.ErrConflict)
}

func TestBookRepoDeleteIsOwnerScoped(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	users := repo.NewUserRepo(db)
	books := repo.NewBookRepo(db)
	seedUser(t, users, "user-1")
	seedUser(t, users, "user-2")

	require.NoError(t, books.Create(ctx, newBook("user-1", "book-1", "octo", "notes")))
	err := books.Delete(ctx, "user-2", "book-1")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	fetched, err := books.GetByID(ctx, "book-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", fetched.UserID)
}
