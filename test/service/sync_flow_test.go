package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/notesync/internal/bluesky"
	"github.com/xxxsen/notesync/internal/github"
	"github.com/xxxsen/notesync/internal/model"
	"github.com/xxxsen/notesync/internal/pkg/timeutil"
	"github.com/xxxsen/notesync/internal/repo"
	"github.com/xxxsen/notesync/internal/service"
	"github.com/xxxsen/notesync/test/testutil"
)

type mapFetcher struct {
	files map[string][]byte
}

func (f *mapFetcher) FetchFile(ctx context.Context, installationID int64, owner, repoName, path string) ([]byte, error) {
	content, ok := f.files[path]
	if !ok {
		return nil, github.ErrContentNotFound
	}
	return content, nil
}

func (f *mapFetcher) ListMarkdownFiles(ctx context.Context, installationID int64, owner, repoName string) ([]string, error) {
	paths := make([]string, 0, len(f.files))
	for path := range f.files {
		paths = append(paths, path)
	}
	return paths, nil
}

type okPoster struct{}

func (p *okPoster) Post(ctx context.Context, account bluesky.Account, text string) (string, string, error) {
	return "at://did:plc:abc/app.bsky.feed.post/1", "bafyreia", nil
}

func TestPushToPostFlow(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	users := repo.NewUserRepo(db)
	books := repo.NewBookRepo(db)
	status := repo.NewSyncStatusRepo(db)
	notes := repo.NewNoteRepo(db)
	posts := repo.NewPostRecordRepo(db)
	accounts := repo.NewSocialAccountRepo(db)

	now := timeutil.NowUnix()
	require.NoError(t, users.Create(ctx, &model.User{ID: "user-1", Email: "a@example.com", PasswordHash: "h", Ctime: now, Mtime: now}))
	require.NoError(t, accounts.Upsert(ctx, &model.SocialAccount{
		UserID:     "user-1",
		Platform:   bluesky.Platform,
		Identifier: "alice.bsky.social",
		Credential: "app-pass",
		Ctime:      now,
		Mtime:      now,
	}))

	book := &model.Book{
		ID:             "book-1",
		UserID:         "user-1",
		Owner:          "octo",
		Repo:           "notes",
		InstallationID: 42,
		WebhookSecret:  "secret",
		Ctime:          now,
		Mtime:          now,
	}
	require.NoError(t, books.Create(ctx, book))

	fetcher := &mapFetcher{files: map[string][]byte{"a.md": []byte("# Hello\nworld")}}
	syncSvc := service.NewSyncService(fetcher, notes, status, service.WithRetryDelay(0))
	fanout := service.NewFanoutService(accounts, posts, &okPoster{}, 2)
	bookSvc := service.NewBookService(books, status, notes, posts, syncSvc, fanout)

	result, posted, err := bookSvc.SyncPush(ctx, book, []model.CommitChange{{Added: []string{"a.md"}}})
	require.NoError(t, err)
	require.Len(t, result.Added, 1)
	require.Equal(t, result.AddedIDs(), posted)

	st, err := bookSvc.Status(ctx, "user-1", "book-1")
	require.NoError(t, err)
	require.Equal(t, model.SyncStatusSynced, st.Status)
	require.NotNil(t, st.LastSyncedAt)

	stored, err := notes.GetByPath(ctx, "book-1", "a.md")
	require.NoError(t, err)
	require.Equal(t, "Hello", stored.Title)

	note, records, err := bookSvc.GetNote(ctx, "user-1", stored.ID)
	require.NoError(t, err)
	require.Equal(t, "a.md", note.Path)
	require.Len(t, records, 1)
	require.Equal(t, model.PostStatusPosted, records[0].Status)
	require.NotEmpty(t, records[0].PostURI)

	// Redelivery of the same payload updates in place and posts nothing new.
	result, posted, err = bookSvc.SyncPush(ctx, book, []model.CommitChange{{Added: []string{"a.md"}}})
	require.NoError(t, err)
	require.Empty(t, result.Added)
	require.Equal(t, []string{"a.md"}, result.Updated)
	require.Empty(t, posted)
}
