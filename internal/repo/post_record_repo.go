package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/notesync/internal/model"
	"github.com/xxxsen/notesync/internal/pkg/dbutil"
)

type PostRecordRepo struct {
	db *sql.DB
}

func NewPostRecordRepo(db *sql.DB) *PostRecordRepo {
	return &PostRecordRepo{db: db}
}

// Create appends one fan-out attempt record. Records are never updated.
func (r *PostRecordRepo) Create(ctx context.Context, record *model.PostRecord) error {
	data := map[string]interface{}{
		"id":            record.ID,
		"note_id":       record.NoteID,
		"platform":      record.Platform,
		"status":        record.Status,
		"post_uri":      record.PostURI,
		"post_cid":      record.PostCID,
		"error_message": record.ErrorMessage,
		"ctime":         record.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("post_records", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *PostRecordRepo) ListByNote(ctx context.Context, noteID string) ([]model.PostRecord, error) {
	where := map[string]interface{}{"note_id": noteID, "_orderby": "ctime desc"}
	sqlStr, args, err := builder.BuildSelect("post_records", where, []string{"id", "note_id", "platform", "status", "post_uri", "post_cid", "error_message", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	records := make([]model.PostRecord, 0)
	for rows.Next() {
		var record model.PostRecord
		if err := rows.Scan(&record.ID, &record.NoteID, &record.Platform, &record.Status, &record.PostURI, &record.PostCID, &record.ErrorMessage, &record.Ctime); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
