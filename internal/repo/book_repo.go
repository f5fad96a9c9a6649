package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/notesync/internal/model"
	"github.com/xxxsen/notesync/internal/pkg/dbutil"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
)

var bookFields = []string{"id", "user_id", "owner", "repo", "installation_id", "webhook_secret", "ctime", "mtime"}

type BookRepo struct {
	db *sql.DB
}

func NewBookRepo(db *sql.DB) *BookRepo {
	return &BookRepo{db: db}
}

// Create inserts the book together with its WAITING sync status row; the two
// share a lifecycle so they are written in one transaction.
func (r *BookRepo) Create(ctx context.Context, book *model.Book) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	data := map[string]interface{}{
		"id":              book.ID,
		"user_id":         book.UserID,
		"owner":           book.Owner,
		"repo":            book.Repo,
		"installation_id": book.InstallationID,
		"webhook_secret":  book.WebhookSecret,
		"ctime":           book.Ctime,
		"mtime":           book.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("books", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}

	status := map[string]interface{}{
		"book_id": book.ID,
		"status":  model.SyncStatusWaiting,
		"mtime":   book.Ctime,
	}
	sqlStr, args, err = builder.BuildInsert("sync_status", []map[string]interface{}{status})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *BookRepo) GetByID(ctx context.Context, bookID string) (*model.Book, error) {
	return r.getOne(ctx, map[string]interface{}{"id": bookID})
}

func (r *BookRepo) GetByOwnerRepo(ctx context.Context, owner, repo string) (*model.Book, error) {
	return r.getOne(ctx, map[string]interface{}{"owner": owner, "repo": repo})
}

func (r *BookRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.Book, error) {
	sqlStr, args, err := builder.BuildSelect("books", where, bookFields)
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
	var book model.Book
	if err := rows.Scan(&book.ID, &book.UserID, &book.Owner, &book.Repo, &book.InstallationID, &book.WebhookSecret, &book.Ctime, &book.Mtime); err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *BookRepo) ListByUser(ctx context.Context, userID string) ([]model.Book, error) {
	return r.list(ctx, map[string]interface{}{"user_id": userID, "_orderby": "ctime desc"})
}

func (r *BookRepo) ListAll(ctx context.Context) ([]model.Book, error) {
	return r.list(ctx, map[string]interface{}{"_orderby": "ctime asc"})
}

func (r *BookRepo) list(ctx context.Context, where map[string]interface{}) ([]model.Book, error) {
	sqlStr, args, err := builder.BuildSelect("books", where, bookFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	books := make([]model.Book, 0)
	for rows.Next() {
		var book model.Book
		if err := rows.Scan(&book.ID, &book.UserID, &book.Owner, &book.Repo, &book.InstallationID, &book.WebhookSecret, &book.Ctime, &book.Mtime); err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

func (r *BookRepo) Delete(ctx context.Context, userID, bookID string) error {
	where := map[string]interface{}{"id": bookID, "user_id": userID}
	sqlStr, args, err := builder.BuildDelete("books", where)
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
