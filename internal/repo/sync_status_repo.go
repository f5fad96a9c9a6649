package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/notesync/internal/model"
	"github.com/xxxsen/notesync/internal/pkg/dbutil"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
)

type SyncStatusRepo struct {
	db *sql.DB
}

func NewSyncStatusRepo(db *sql.DB) *SyncStatusRepo {
	return &SyncStatusRepo{db: db}
}

func (r *SyncStatusRepo) Get(ctx context.Context, bookID string) (*model.SyncStatus, error) {
	where := map[string]interface{}{"book_id": bookID}
	sqlStr, args, err := builder.BuildSelect("sync_status", where, []string{"book_id", "status", "last_synced_at", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	var status model.SyncStatus
	var syncedAt sql.NullInt64
	if err := rows.Scan(&status.BookID, &status.Status, &syncedAt, &status.Mtime); err != nil {
		return nil, err
	}
	if syncedAt.Valid {
		status.LastSyncedAt = &syncedAt.Int64
	}
	return &status, nil
}

// MarkSynced records a successful attempt and advances last_synced_at.
func (r *SyncStatusRepo) MarkSynced(ctx context.Context, bookID string, syncedAt int64) error {
	return r.update(ctx, bookID, map[string]interface{}{
		"status":         model.SyncStatusSynced,
		"last_synced_at": syncedAt,
		"mtime":          syncedAt,
	})
}

// MarkError records a failed attempt; last_synced_at keeps its prior value.
func (r *SyncStatusRepo) MarkError(ctx context.Context, bookID string, now int64) error {
	return r.update(ctx, bookID, map[string]interface{}{
		"status": model.SyncStatusError,
		"mtime":  now,
	})
}

func (r *SyncStatusRepo) update(ctx context.Context, bookID string, update map[string]interface{}) error {
	where := map[string]interface{}{"book_id": bookID}
	sqlStr, args, err := builder.BuildUpdate("sync_status", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}
