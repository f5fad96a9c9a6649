package service

import (
	"context"
	"strings"

	"github.com/xxxsen/notesync/internal/bluesky"
	"github.com/xxxsen/notesync/internal/model"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
	"github.com/xxxsen/notesync/internal/pkg/timeutil"
	"github.com/xxxsen/notesync/internal/repo"
)

type AccountService struct {
	accounts *repo.SocialAccountRepo
}

func NewAccountService(accounts *repo.SocialAccountRepo) *AccountService {
	return &AccountService{accounts: accounts}
}

type SocialAccountInput struct {
	Identifier  string
	AppPassword string
	ServiceURL  string
}

func (s *AccountService) SetSocial(ctx context.Context, userID string, input SocialAccountInput) error {
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" || input.AppPassword == "" {
		return appErr.ErrInvalid
	}
	now := timeutil.NowUnix()
	return s.accounts.Upsert(ctx, &model.SocialAccount{
		UserID:     userID,
		Platform:   bluesky.Platform,
		Identifier: identifier,
		Credential: input.AppPassword,
		ServiceURL: strings.TrimSpace(input.ServiceURL),
		Ctime:      now,
		Mtime:      now,
	})
}

func (s *AccountService) GetSocial(ctx context.Context, userID string) (*model.SocialAccount, error) {
	return s.accounts.GetByUser(ctx, userID)
}
