package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notesync/internal/bluesky"
	"github.com/xxxsen/notesync/internal/model"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
	"github.com/xxxsen/notesync/internal/pkg/timeutil"
)

const maxPostRunes = 300

// Poster publishes one post and returns the provider's URI and CID.
// Implemented by bluesky.Poster.
type Poster interface {
	Post(ctx context.Context, account bluesky.Account, text string) (string, string, error)
}

type AccountStore interface {
	GetByUser(ctx context.Context, userID string) (*model.SocialAccount, error)
}

type PostRecordStore interface {
	Create(ctx context.Context, record *model.PostRecord) error
}

// FanoutService publishes newly added notes. Whatever happens, a PostRecord
// is written per note and nothing propagates back to the sync that produced
// the notes.
type FanoutService struct {
	accounts AccountStore
	records  PostRecordStore
	poster   Poster
	workers  int
}

func NewFanoutService(accounts AccountStore, records PostRecordStore, poster Poster, workers int) *FanoutService {
	if workers <= 0 {
		workers = 2
	}
	return &FanoutService{accounts: accounts, records: records, poster: poster, workers: workers}
}

// PostAdded fans the notes out with bounded parallelism and returns the ids
// of the notes that actually got posted. Notes are already committed by the
// time this runs; one note's failure never blocks another's attempt.
func (s *FanoutService) PostAdded(ctx context.Context, book *model.Book, notes []model.Note) []string {
	if len(notes) == 0 {
		return []string{}
	}
	logger := logutil.GetLogger(ctx).With(zap.String("book_id", book.ID))

	var account bluesky.Account
	var accountErr error
	stored, err := s.accounts.GetByUser(ctx, book.UserID)
	switch {
	case err == nil:
		account = bluesky.Account{
			Identifier:  stored.Identifier,
			AppPassword: stored.Credential,
			ServiceURL:  stored.ServiceURL,
		}
	case appErr.IsNotFound(err):
		accountErr = fmt.Errorf("no %s account configured", bluesky.Platform)
	default:
		accountErr = fmt.Errorf("load social account: %v", err)
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		posted []string
	)
	sem := make(chan struct{}, s.workers)
	for _, note := range notes {
		if note.Scope != model.NoteScopePublic {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(note model.Note) {
			defer wg.Done()
			defer func() { <-sem }()
			record := &model.PostRecord{
				ID:       newID(),
				NoteID:   note.ID,
				Platform: bluesky.Platform,
				Ctime:    timeutil.NowUnix(),
			}
			if accountErr != nil {
				record.Status = model.PostStatusError
				record.ErrorMessage = accountErr.Error()
			} else if uri, cid, err := s.poster.Post(ctx, account, buildPostText(book, &note)); err != nil {
				record.Status = model.PostStatusError
				record.ErrorMessage = err.Error()
				logger.Warn("post note failed", zap.String("note_id", note.ID), zap.Error(err))
			} else {
				record.Status = model.PostStatusPosted
				record.PostURI = uri
				record.PostCID = cid
				mu.Lock()
				posted = append(posted, note.ID)
				mu.Unlock()
			}
			if err := s.records.Create(ctx, record); err != nil {
				logger.Error("write post record failed", zap.String("note_id", note.ID), zap.Error(err))
			}
		}(note)
	}
	wg.Wait()
	sort.Strings(posted)
	return posted
}

func buildPostText(book *model.Book, note *model.Note) string {
	text := fmt.Sprintf("New note: %s\n%s/%s - %s", note.Title, book.Owner, book.Repo, note.Path)
	runes := []rune(text)
	if len(runes) > maxPostRunes {
		return string(runes[:maxPostRunes-1]) + "…"
	}
	return text
}
