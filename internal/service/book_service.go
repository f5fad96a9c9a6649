package service

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notesync/internal/model"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
	"github.com/xxxsen/notesync/internal/pkg/timeutil"
)

// BookStore is the slice of the book repository the service needs.
type BookStore interface {
	Create(ctx context.Context, book *model.Book) error
	GetByID(ctx context.Context, bookID string) (*model.Book, error)
	GetByOwnerRepo(ctx context.Context, owner, repo string) (*model.Book, error)
	ListByUser(ctx context.Context, userID string) ([]model.Book, error)
	Delete(ctx context.Context, userID, bookID string) error
}

type StatusReader interface {
	Get(ctx context.Context, bookID string) (*model.SyncStatus, error)
}

type NoteReader interface {
	GetByID(ctx context.Context, noteID string) (*model.Note, error)
	ListByBook(ctx context.Context, bookID string) ([]model.Note, error)
}

type PostRecordReader interface {
	ListByNote(ctx context.Context, noteID string) ([]model.PostRecord, error)
}

type BookService struct {
	books  BookStore
	status StatusReader
	notes  NoteReader
	posts  PostRecordReader
	sync   *SyncService
	fanout *FanoutService
}

func NewBookService(books BookStore, status StatusReader, notes NoteReader, posts PostRecordReader, sync *SyncService, fanout *FanoutService) *BookService {
	return &BookService{books: books, status: status, notes: notes, posts: posts, sync: sync, fanout: fanout}
}

type BookCreateInput struct {
	Owner          string
	Repo           string
	InstallationID int64
}

func (s *BookService) Create(ctx context.Context, userID string, input BookCreateInput) (*model.Book, error) {
	owner := strings.TrimSpace(input.Owner)
	repoName := strings.TrimSpace(input.Repo)
	if owner == "" || repoName == "" || input.InstallationID <= 0 {
		return nil, appErr.ErrInvalid
	}
	now := timeutil.NowUnix()
	book := &model.Book{
		ID:             newID(),
		UserID:         userID,
		Owner:          owner,
		Repo:           repoName,
		InstallationID: input.InstallationID,
		WebhookSecret:  newSecret(),
		Ctime:          now,
		Mtime:          now,
	}
	if err := s.books.Create(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

func (s *BookService) List(ctx context.Context, userID string) ([]model.Book, error) {
	return s.books.ListByUser(ctx, userID)
}

func (s *BookService) Get(ctx context.Context, userID, bookID string) (*model.Book, error) {
	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	return book, nil
}

func (s *BookService) Delete(ctx context.Context, userID, bookID string) error {
	return s.books.Delete(ctx, userID, bookID)
}

// FindByOwnerRepo is the webhook gateway's lookup; unlike Get it carries no
// caller identity, the HMAC check against the book's secret is the auth.
func (s *BookService) FindByOwnerRepo(ctx context.Context, owner, repoName string) (*model.Book, error) {
	return s.books.GetByOwnerRepo(ctx, owner, repoName)
}

func (s *BookService) Status(ctx context.Context, userID, bookID string) (*model.SyncStatus, error) {
	if _, err := s.Get(ctx, userID, bookID); err != nil {
		return nil, err
	}
	return s.status.Get(ctx, bookID)
}

func (s *BookService) ListNotes(ctx context.Context, userID, bookID string) ([]model.Note, error) {
	if _, err := s.Get(ctx, userID, bookID); err != nil {
		return nil, err
	}
	return s.notes.ListByBook(ctx, bookID)
}

func (s *BookService) GetNote(ctx context.Context, userID, noteID string) (*model.Note, []model.PostRecord, error) {
	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return nil, nil, err
	}
	if note.UserID != userID {
		return nil, nil, appErr.ErrNotFound
	}
	records, err := s.posts.ListByNote(ctx, noteID)
	if err != nil {
		return nil, nil, err
	}
	return note, records, nil
}

// SyncPush runs one incremental attempt for a verified push delivery and
// fans out whatever got newly added, even when the attempt ended fatally:
// applied inserts stay committed and deserve their fan-out.
func (s *BookService) SyncPush(ctx context.Context, book *model.Book, commits []model.CommitChange) (*SyncResult, []string, error) {
	result, err := s.sync.SyncCommits(ctx, book, commits)
	posted := s.fanout.PostAdded(ctx, book, result.Added)
	return result, posted, err
}

// TriggerSync accepts a manual full resync. The caller only learns whether
// the request was accepted; the attempt itself runs in the background and
// its outcome is visible through the status query.
func (s *BookService) TriggerSync(ctx context.Context, userID, owner, repoName string) bool {
	book, err := s.books.GetByOwnerRepo(ctx, owner, repoName)
	if err != nil || book.UserID != userID {
		return false
	}
	go func() {
		// Detached from the request context on purpose: the HTTP
		// response returns before this work runs.
		bgCtx := context.Background()
		logger := logutil.GetLogger(bgCtx).With(zap.String("book_id", book.ID))
		result, err := s.sync.SyncListing(bgCtx, book)
		if err != nil {
			logger.Error("manual resync failed", zap.Error(err))
		}
		if result != nil {
			posted := s.fanout.PostAdded(bgCtx, book, result.Added)
			logger.Info("manual resync finished",
				zap.Int("synced", result.Synced()),
				zap.Int("posted", len(posted)),
			)
		}
	}()
	return true
}
