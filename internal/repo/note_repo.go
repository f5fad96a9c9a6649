package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/notesync/internal/model"
	"github.com/xxxsen/notesync/internal/pkg/dbutil"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
)

var noteFields = []string{"id", "book_id", "user_id", "path", "title", "body", "scope", "ctime", "mtime"}

type NoteRepo struct {
	db *sql.DB
}

func NewNoteRepo(db *sql.DB) *NoteRepo {
	return &NoteRepo{db: db}
}

// Upsert inserts the note or fully replaces title/body for an existing
// (book_id, path) row. Returns true when a new row was inserted. Repeated
// application of the same content is a no-op beyond the mtime touch, which is
// what keeps webhook redelivery safe.
func (r *NoteRepo) Upsert(ctx context.Context, note *model.Note) (bool, error) {
	where := map[string]interface{}{
		"book_id": note.BookID,
		"path":    note.Path,
	}
	update := map[string]interface{}{
		"title": note.Title,
		"body":  note.Body,
		"mtime": note.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("notes", where, update)
	if err != nil {
		return false, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return false, nil
	}

	data := map[string]interface{}{
		"id":      note.ID,
		"book_id": note.BookID,
		"user_id": note.UserID,
		"path":    note.Path,
		"title":   note.Title,
		"body":    note.Body,
		"scope":   note.Scope,
		"ctime":   note.Ctime,
		"mtime":   note.Mtime,
	}
	sqlStr, args, err = builder.BuildInsert("notes", []map[string]interface{}{data})
	if err != nil {
		return false, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return false, appErr.ErrConflict
		}
		return false, err
	}
	return true, nil
}

// DeleteByPath removes the note if it exists; deleting an absent path is not
// an error. Returns true when a row was actually removed.
func (r *NoteRepo) DeleteByPath(ctx context.Context, bookID, path string) (bool, error) {
	where := map[string]interface{}{"book_id": bookID, "path": path}
	sqlStr, args, err := builder.BuildDelete("notes", where)
	if err != nil {
		return false, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *NoteRepo) GetByPath(ctx context.Context, bookID, path string) (*model.Note, error) {
	return r.getOne(ctx, map[string]interface{}{"book_id": bookID, "path": path})
}

func (r *NoteRepo) GetByID(ctx context.Context, noteID string) (*model.Note, error) {
	return r.getOne(ctx, map[string]interface{}{"id": noteID})
}

func (r *NoteRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.Note, error) {
	sqlStr, args, err := builder.BuildSelect("notes", where, noteFields)
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
	var note model.Note
	if err := rows.Scan(&note.ID, &note.BookID, &note.UserID, &note.Path, &note.Title, &note.Body, &note.Scope, &note.Ctime, &note.Mtime); err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *NoteRepo) ListByBook(ctx context.Context, bookID string) ([]model.Note, error) {
	where := map[string]interface{}{"book_id": bookID, "_orderby": "path asc"}
	sqlStr, args, err := builder.BuildSelect("notes", where, noteFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	notes := make([]model.Note, 0)
	for rows.Next() {
		var note model.Note
		if err := rows.Scan(&note.ID, &note.BookID, &note.UserID, &note.Path, &note.Title, &note.Body, &note.Scope, &note.Ctime, &note.Mtime); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

// ListPaths returns the stored note paths for a book; full-listing
// reconciliation diffs this against the remote tree.
func (r *NoteRepo) ListPaths(ctx context.Context, bookID string) ([]string, error) {
	where := map[string]interface{}{"book_id": bookID, "_orderby": "path asc"}
	sqlStr, args, err := builder.BuildSelect("notes", where, []string{"path"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	paths := make([]string, 0)
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}
