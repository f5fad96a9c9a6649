package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notesync/internal/github"
	"github.com/xxxsen/notesync/internal/model"
	"github.com/xxxsen/notesync/internal/pkg/timeutil"
)

// ContentFetcher resolves installation-scoped credentials and returns file
// content for a tracked repository. Implemented by github.Client.
type ContentFetcher interface {
	FetchFile(ctx context.Context, installationID int64, owner, repo, path string) ([]byte, error)
	ListMarkdownFiles(ctx context.Context, installationID int64, owner, repo string) ([]string, error)
}

// NoteStore is the slice of the note repository the coordinator drives.
type NoteStore interface {
	Upsert(ctx context.Context, note *model.Note) (bool, error)
	DeleteByPath(ctx context.Context, bookID, path string) (bool, error)
	ListPaths(ctx context.Context, bookID string) ([]string, error)
}

// StatusStore records the outcome of an attempt on the book's status row.
type StatusStore interface {
	MarkSynced(ctx context.Context, bookID string, syncedAt int64) error
	MarkError(ctx context.Context, bookID string, now int64) error
}

// ContentArchiver keeps a copy of every fetched revision. Optional; archive
// failures never affect the sync outcome.
type ContentArchiver interface {
	Archive(ctx context.Context, key string, content []byte) error
}

type PathError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// SyncResult is what one attempt actually applied. Per-path errors sit next
// to the applied lists; a fatal error is returned separately by the sync
// call and leaves already-applied changes committed.
type SyncResult struct {
	Added   []model.Note `json:"-"`
	Updated []string     `json:"updated"`
	Removed []string     `json:"removed"`
	Errors  []PathError  `json:"errors"`
}

func (r *SyncResult) Synced() int {
	return len(r.Added) + len(r.Updated) + len(r.Removed)
}

func (r *SyncResult) AddedIDs() []string {
	ids := make([]string, 0, len(r.Added))
	for _, note := range r.Added {
		ids = append(ids, note.ID)
	}
	return ids
}

func (r *SyncResult) AddedPaths() []string {
	paths := make([]string, 0, len(r.Added))
	for _, note := range r.Added {
		paths = append(paths, note.Path)
	}
	return paths
}

type SyncService struct {
	fetcher    ContentFetcher
	notes      NoteStore
	status     StatusStore
	archive    ContentArchiver
	locks      *keyedMutex
	workers    int
	retries    int
	retryDelay time.Duration
}

type SyncOption func(*SyncService)

func WithFetchWorkers(workers int) SyncOption {
	return func(s *SyncService) {
		if workers > 0 {
			s.workers = workers
		}
	}
}

func WithFetchRetries(retries int) SyncOption {
	return func(s *SyncService) {
		if retries > 0 {
			s.retries = retries
		}
	}
}

func WithRetryDelay(delay time.Duration) SyncOption {
	return func(s *SyncService) {
		s.retryDelay = delay
	}
}

func WithArchiver(archive ContentArchiver) SyncOption {
	return func(s *SyncService) {
		s.archive = archive
	}
}

func NewSyncService(fetcher ContentFetcher, notes NoteStore, status StatusStore, opts ...SyncOption) *SyncService {
	s := &SyncService{
		fetcher:    fetcher,
		notes:      notes,
		status:     status,
		locks:      newKeyedMutex(),
		workers:    4,
		retries:    3,
		retryDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncCommits runs one incremental attempt from a push-event commit list.
// Attempts for the same book are serialized; a caller blocks until the
// in-flight attempt finishes.
func (s *SyncService) SyncCommits(ctx context.Context, book *model.Book, commits []model.CommitChange) (*SyncResult, error) {
	unlock := s.locks.Lock(book.ID)
	defer unlock()
	return s.attempt(ctx, book, ReconcileCommits(commits))
}

// SyncListing runs one full-listing attempt. Stored paths are re-read under
// the book lock so the diff never works from stale state.
func (s *SyncService) SyncListing(ctx context.Context, book *model.Book) (*SyncResult, error) {
	unlock := s.locks.Lock(book.ID)
	defer unlock()
	remote, err := s.fetcher.ListMarkdownFiles(ctx, book.InstallationID, book.Owner, book.Repo)
	if err != nil {
		s.markError(ctx, book)
		return nil, err
	}
	stored, err := s.notes.ListPaths(ctx, book.ID)
	if err != nil {
		s.markError(ctx, book)
		return nil, err
	}
	return s.attempt(ctx, book, ReconcileListing(remote, stored))
}

func (s *SyncService) attempt(ctx context.Context, book *model.Book, diff Diff) (*SyncResult, error) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("book_id", book.ID),
		zap.String("repo", book.Owner+"/"+book.Repo),
	)
	logger.Info("sync attempt started",
		zap.Int("to_upsert", len(diff.ToUpsert)),
		zap.Int("to_delete", len(diff.ToDelete)),
	)
	result := &SyncResult{}
	for _, path := range diff.ToDelete {
		removed, err := s.notes.DeleteByPath(ctx, book.ID, path)
		if err != nil {
			result.Errors = append(result.Errors, PathError{Path: path, Message: err.Error()})
			continue
		}
		if removed {
			result.Removed = append(result.Removed, path)
		}
	}

	fatal := s.fetchAndUpsert(ctx, book, diff.ToUpsert, result)
	sort.Slice(result.Added, func(i, j int) bool { return result.Added[i].Path < result.Added[j].Path })
	sort.Strings(result.Updated)

	now := timeutil.NowUnix()
	if fatal != nil {
		logger.Error("sync attempt failed", zap.Error(fatal),
			zap.Int("applied", result.Synced()), zap.Int("path_errors", len(result.Errors)))
		s.markError(ctx, book)
		return result, fatal
	}
	if err := s.status.MarkSynced(ctx, book.ID, now); err != nil {
		logger.Error("mark synced failed", zap.Error(err))
		return result, err
	}
	logger.Info("sync attempt finished",
		zap.Int("added", len(result.Added)),
		zap.Int("updated", len(result.Updated)),
		zap.Int("removed", len(result.Removed)),
		zap.Int("path_errors", len(result.Errors)),
	)
	return result, nil
}

func (s *SyncService) markError(ctx context.Context, book *model.Book) {
	if err := s.status.MarkError(ctx, book.ID, timeutil.NowUnix()); err != nil {
		logutil.GetLogger(ctx).Error("mark error failed", zap.String("book_id", book.ID), zap.Error(err))
	}
}

func (s *SyncService) fetchAndUpsert(ctx context.Context, book *model.Book, paths []string, result *SyncResult) error {
	if len(paths) == 0 {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		fatal error
	)
	jobs := make(chan string)
	workers := s.workers
	if workers > len(paths) {
		workers = len(paths)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if err := s.syncOne(runCtx, book, path, result, &mu); err != nil {
					mu.Lock()
					if fatal == nil {
						fatal = err
					}
					mu.Unlock()
					cancel()
					return
				}
			}
		}()
	}
feed:
	for _, path := range paths {
		select {
		case jobs <- path:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return fatal
}

// syncOne fetches and upserts a single path. A non-nil return is fatal to the
// whole attempt; recoverable problems are recorded on result instead.
func (s *SyncService) syncOne(ctx context.Context, book *model.Book, path string, result *SyncResult, mu *sync.Mutex) error {
	if ctx.Err() != nil {
		return nil
	}
	content, err := s.fetchWithRetry(ctx, book, path)
	if err != nil {
		switch {
		case errors.Is(err, github.ErrContentNotFound):
			// The file vanished between the push and the fetch; the
			// next delivery will carry its removal.
			return nil
		case errors.Is(err, github.ErrAuth):
			return err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		default:
			mu.Lock()
			result.Errors = append(result.Errors, PathError{Path: path, Message: err.Error()})
			mu.Unlock()
			return nil
		}
	}

	now := timeutil.NowUnix()
	note := &model.Note{
		ID:     newID(),
		BookID: book.ID,
		UserID: book.UserID,
		Path:   path,
		Title:  extractTitle(path, content),
		Body:   string(content),
		Scope:  model.NoteScopePublic,
		Ctime:  now,
		Mtime:  now,
	}
	inserted, err := s.notes.Upsert(ctx, note)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", path, err)
	}
	mu.Lock()
	if inserted {
		result.Added = append(result.Added, *note)
	} else {
		result.Updated = append(result.Updated, path)
	}
	mu.Unlock()

	if s.archive != nil {
		key := fmt.Sprintf("%s/%s@%d", book.ID, path, now)
		if err := s.archive.Archive(ctx, key, content); err != nil {
			logutil.GetLogger(ctx).Warn("archive content failed",
				zap.String("book_id", book.ID), zap.String("path", path), zap.Error(err))
		}
	}
	return nil
}

func (s *SyncService) fetchWithRetry(ctx context.Context, book *model.Book, path string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := s.fetcher.FetchFile(ctx, book.InstallationID, book.Owner, book.Repo, path)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !github.IsRetryable(err) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.retryDelay * time.Duration(attempt+1)):
		}
	}
	return nil, lastErr
}
