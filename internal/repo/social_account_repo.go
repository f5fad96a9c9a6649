package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/notesync/internal/model"
	"github.com/xxxsen/notesync/internal/pkg/dbutil"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
)

type SocialAccountRepo struct {
	db *sql.DB
}

func NewSocialAccountRepo(db *sql.DB) *SocialAccountRepo {
	return &SocialAccountRepo{db: db}
}

func (r *SocialAccountRepo) Upsert(ctx context.Context, account *model.SocialAccount) error {
	where := map[string]interface{}{"user_id": account.UserID}
	update := map[string]interface{}{
		"platform":    account.Platform,
		"identifier":  account.Identifier,
		"credential":  account.Credential,
		"service_url": account.ServiceURL,
		"mtime":       account.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("social_accounts", where, update)
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
	if affected > 0 {
		return nil
	}

	data := map[string]interface{}{
		"user_id":     account.UserID,
		"platform":    account.Platform,
		"identifier":  account.Identifier,
		"credential":  account.Credential,
		"service_url": account.ServiceURL,
		"ctime":       account.Ctime,
		"mtime":       account.Mtime,
	}
	sqlStr, args, err = builder.BuildInsert("social_accounts", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *SocialAccountRepo) GetByUser(ctx context.Context, userID string) (*model.SocialAccount, error) {
	where := map[string]interface{}{"user_id": userID}
	sqlStr, args, err := builder.BuildSelect("social_accounts", where, []string{"user_id", "platform", "identifier", "credential", "service_url", "ctime", "mtime"})
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
	var account model.SocialAccount
	if err := rows.Scan(&account.UserID, &account.Platform, &account.Identifier, &account.Credential, &account.ServiceURL, &account.Ctime, &account.Mtime); err != nil {
		return nil, err
	}
	return &account, nil
}
