package job

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notesync/internal/repo"
	"github.com/xxxsen/notesync/internal/service"
)

// ResyncJob walks every tracked book and runs a full-listing sync, catching
// up anything webhook deliveries missed. Per-book failures are logged and
// the walk continues.
type ResyncJob struct {
	books  *repo.BookRepo
	sync   *service.SyncService
	fanout *service.FanoutService
}

func NewResyncJob(books *repo.BookRepo, sync *service.SyncService, fanout *service.FanoutService) *ResyncJob {
	return &ResyncJob{books: books, sync: sync, fanout: fanout}
}

func (j *ResyncJob) Name() string {
	return "full_resync"
}

func (j *ResyncJob) Run(ctx context.Context) error {
	books, err := j.books.ListAll(ctx)
	if err != nil {
		return err
	}
	failed := 0
	for i := range books {
		book := &books[i]
		logger := logutil.GetLogger(ctx).With(zap.String("book_id", book.ID))
		result, err := j.sync.SyncListing(ctx, book)
		if err != nil {
			failed++
			logger.Error("scheduled resync failed", zap.Error(err))
		}
		if result != nil {
			posted := j.fanout.PostAdded(ctx, book, result.Added)
			logger.Info("scheduled resync done",
				zap.Int("synced", result.Synced()),
				zap.Int("posted", len(posted)),
			)
		}
	}
	if failed > 0 {
		return fmt.Errorf("resync failed for %d of %d books", failed, len(books))
	}
	return nil
}
