package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/notesync/internal/github"
	"github.com/xxxsen/notesync/internal/model"
)

type fakeFetcher struct {
	mu      sync.Mutex
	files   map[string][]byte
	errs    map[string]error
	listing []string
	listErr error
	calls   map[string]int
	delay   time.Duration
	cur     int
	maxCur  int
}

func (f *fakeFetcher) FetchFile(ctx context.Context, installationID int64, owner, repo, path string) ([]byte, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[path]++
	f.cur++
	if f.cur > f.maxCur {
		f.maxCur = f.cur
	}
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	f.mu.Lock()
	f.cur--
	err := f.errs[path]
	content, ok := f.files[path]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, github.ErrContentNotFound
	}
	return content, nil
}

func (f *fakeFetcher) ListMarkdownFiles(ctx context.Context, installationID int64, owner, repo string) ([]string, error) {
	return f.listing, f.listErr
}

func (f *fakeFetcher) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

type fakeNoteStore struct {
	mu        sync.Mutex
	notes     map[string]model.Note
	upsertErr error
	deleteErr error
}

func (s *fakeNoteStore) Upsert(ctx context.Context, note *model.Note) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return false, s.upsertErr
	}
	if s.notes == nil {
		s.notes = make(map[string]model.Note)
	}
	stored := *note
	existing, exists := s.notes[note.Path]
	if exists {
		stored.ID = existing.ID
		stored.Ctime = existing.Ctime
	}
	s.notes[note.Path] = stored
	return !exists, nil
}

func (s *fakeNoteStore) DeleteByPath(ctx context.Context, bookID, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return false, s.deleteErr
	}
	if _, ok := s.notes[path]; !ok {
		return false, nil
	}
	delete(s.notes, path)
	return true, nil
}

func (s *fakeNoteStore) ListPaths(ctx context.Context, bookID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.notes))
	for path := range s.notes {
		paths = append(paths, path)
	}
	return paths, nil
}

func (s *fakeNoteStore) seed(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notes == nil {
		s.notes = make(map[string]model.Note)
	}
	s.notes[path] = model.Note{ID: "seed-" + path, BookID: "book-1", Path: path, Scope: model.NoteScopePublic}
}

func (s *fakeNoteStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notes)
}

type fakeStatusStore struct {
	mu            sync.Mutex
	status        string
	lastSyncedAt  int64
	markSyncedErr error
}

func (s *fakeStatusStore) MarkSynced(ctx context.Context, bookID string, syncedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markSyncedErr != nil {
		return s.markSyncedErr
	}
	s.status = model.SyncStatusSynced
	s.lastSyncedAt = syncedAt
	return nil
}

func (s *fakeStatusStore) MarkError(ctx context.Context, bookID string, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = model.SyncStatusError
	return nil
}

func (s *fakeStatusStore) snapshot() (string, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.lastSyncedAt
}

func testBook() *model.Book {
	return &model.Book{
		ID:             "book-1",
		UserID:         "user-1",
		Owner:          "octo",
		Repo:           "notes",
		InstallationID: 42,
	}
}

func TestSyncCommitsAppliesDiff(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string][]byte{"a.md": []byte("# Hello\nbody")}}
	notes := &fakeNoteStore{}
	notes.seed("b.md")
	status := &fakeStatusStore{}
	svc := NewSyncService(fetcher, notes, status, WithRetryDelay(0))

	result, err := svc.SyncCommits(context.Background(), testBook(), []model.CommitChange{
		{Added: []string{"a.md"}},
		{Modified: []string{"a.md"}},
		{Removed: []string{"b.md"}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Synced())
	require.Equal(t, []string{"a.md"}, result.AddedPaths())
	require.Equal(t, []string{"b.md"}, result.Removed)
	require.Empty(t, result.Errors)
	require.Equal(t, 1, fetcher.callCount("a.md"))

	note := notes.notes["a.md"]
	require.Equal(t, "Hello", note.Title)
	require.Equal(t, model.NoteScopePublic, note.Scope)
	require.Equal(t, "user-1", note.UserID)

	st, syncedAt := status.snapshot()
	require.Equal(t, model.SyncStatusSynced, st)
	require.NotZero(t, syncedAt)
}

func TestSyncCommitsIdempotent(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string][]byte{"a.md": []byte("# Hello")}}
	notes := &fakeNoteStore{}
	status := &fakeStatusStore{}
	svc := NewSyncService(fetcher, notes, status, WithRetryDelay(0))

	commits := []model.CommitChange{{Added: []string{"a.md"}}}
	first, err := svc.SyncCommits(context.Background(), testBook(), commits)
	require.NoError(t, err)
	require.Len(t, first.Added, 1)

	second, err := svc.SyncCommits(context.Background(), testBook(), commits)
	require.NoError(t, err)
	require.Empty(t, second.Added)
	require.Equal(t, []string{"a.md"}, second.Updated)
	require.Equal(t, 1, notes.count())
	require.Equal(t, first.Added[0].ID, notes.notes["a.md"].ID)
}

func TestSyncCommitsAuthErrorFatal(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{"a.md": github.ErrAuth}}
	notes := &fakeNoteStore{}
	status := &fakeStatusStore{}
	svc := NewSyncService(fetcher, notes, status, WithFetchWorkers(1), WithRetryDelay(0))

	_, err := svc.SyncCommits(context.Background(), testBook(), []model.CommitChange{
		{Added: []string{"a.md", "b.md"}},
	})
	require.ErrorIs(t, err, github.ErrAuth)
	require.Equal(t, 0, fetcher.callCount("b.md"))

	st, syncedAt := status.snapshot()
	require.Equal(t, model.SyncStatusError, st)
	require.Zero(t, syncedAt)
}

func TestSyncCommitsNetworkErrorIsPerPath(t *testing.T) {
	fetcher := &fakeFetcher{
		files: map[string][]byte{"b.md": []byte("# B")},
		errs:  map[string]error{"a.md": github.ErrNetwork},
	}
	notes := &fakeNoteStore{}
	status := &fakeStatusStore{}
	svc := NewSyncService(fetcher, notes, status, WithFetchRetries(2), WithRetryDelay(0))

	result, err := svc.SyncCommits(context.Background(), testBook(), []model.CommitChange{
		{Added: []string{"a.md", "b.md"}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"b.md"}, result.AddedPaths())
	require.Len(t, result.Errors, 1)
	require.Equal(t, "a.md", result.Errors[0].Path)
	require.Equal(t, 2, fetcher.callCount("a.md"))

	st, _ := status.snapshot()
	require.Equal(t, model.SyncStatusSynced, st)
}

func TestSyncCommitsNotFoundSkipped(t *testing.T) {
	fetcher := &fakeFetcher{}
	notes := &fakeNoteStore{}
	status := &fakeStatusStore{}
	svc := NewSyncService(fetcher, notes, status, WithRetryDelay(0))

	result, err := svc.SyncCommits(context.Background(), testBook(), []model.CommitChange{
		{Added: []string{"gone.md"}},
	})
	require.NoError(t, err)
	require.Zero(t, result.Synced())
	require.Empty(t, result.Errors)

	st, _ := status.snapshot()
	require.Equal(t, model.SyncStatusSynced, st)
}

func TestSyncCommitsUpsertFailureFatal(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string][]byte{"a.md": []byte("# A")}}
	notes := &fakeNoteStore{upsertErr: errors.New("db down")}
	status := &fakeStatusStore{}
	svc := NewSyncService(fetcher, notes, status, WithRetryDelay(0))

	_, err := svc.SyncCommits(context.Background(), testBook(), []model.CommitChange{
		{Added: []string{"a.md"}},
	})
	require.Error(t, err)

	st, _ := status.snapshot()
	require.Equal(t, model.SyncStatusError, st)
}

func TestSyncCommitsMarkSyncedFailure(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string][]byte{"a.md": []byte("# A")}}
	notes := &fakeNoteStore{}
	status := &fakeStatusStore{markSyncedErr: errors.New("db down")}
	svc := NewSyncService(fetcher, notes, status, WithRetryDelay(0))

	result, err := svc.SyncCommits(context.Background(), testBook(), []model.CommitChange{
		{Added: []string{"a.md"}},
	})
	require.Error(t, err)
	// The note itself was applied before the status write failed.
	require.Len(t, result.Added, 1)
	require.Equal(t, 1, notes.count())
}

func TestSyncCommitsDeleteFailureIsPerPath(t *testing.T) {
	fetcher := &fakeFetcher{}
	notes := &fakeNoteStore{deleteErr: errors.New("db hiccup")}
	status := &fakeStatusStore{}
	svc := NewSyncService(fetcher, notes, status, WithRetryDelay(0))

	result, err := svc.SyncCommits(context.Background(), testBook(), []model.CommitChange{
		{Removed: []string{"a.md"}},
	})
	require.NoError(t, err)
	require.Empty(t, result.Removed)
	require.Len(t, result.Errors, 1)

	st, _ := status.snapshot()
	require.Equal(t, model.SyncStatusSynced, st)
}

func TestSyncListing(t *testing.T) {
	fetcher := &fakeFetcher{
		files:   map[string][]byte{"a.md": []byte("# A")},
		listing: []string{"a.md"},
	}
	notes := &fakeNoteStore{}
	notes.seed("gone.md")
	status := &fakeStatusStore{}
	svc := NewSyncService(fetcher, notes, status, WithRetryDelay(0))

	result, err := svc.SyncListing(context.Background(), testBook())
	require.NoError(t, err)
	require.Equal(t, []string{"a.md"}, result.AddedPaths())
	require.Equal(t, []string{"gone.md"}, result.Removed)
	require.Equal(t, 1, notes.count())

	st, _ := status.snapshot()
	require.Equal(t, model.SyncStatusSynced, st)
}

func TestSyncListingFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{listErr: github.ErrNetwork}
	notes := &fakeNoteStore{}
	status := &fakeStatusStore{}
	svc := NewSyncService(fetcher, notes, status, WithRetryDelay(0))

	_, err := svc.SyncListing(context.Background(), testBook())
	require.ErrorIs(t, err, github.ErrNetwork)

	st, _ := status.snapshot()
	require.Equal(t, model.SyncStatusError, st)
}

func TestSyncSerializedPerBook(t *testing.T) {
	fetcher := &fakeFetcher{
		files: map[string][]byte{"a.md": []byte("# A")},
		delay: 10 * time.Millisecond,
	}
	notes := &fakeNoteStore{}
	status := &fakeStatusStore{}
	svc := NewSyncService(fetcher, notes, status, WithFetchWorkers(1), WithRetryDelay(0))

	commits := []model.CommitChange{{Added: []string{"a.md"}}}
	var wg sync.WaitGroup
	added := make([]int, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := svc.SyncCommits(context.Background(), testBook(), commits)
			errs[i] = err
			added[i] = len(result.Added)
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	require.Equal(t, 1, fetcher.maxCur, "attempts for one book must not overlap")
	require.Equal(t, 1, added[0]+added[1], "only the first attempt inserts")
	require.Equal(t, 1, notes.count())
}
