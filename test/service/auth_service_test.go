package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
	"github.com/xxxsen/notesync/internal/pkg/jwt"
	"github.com/xxxsen/notesync/internal/repo"
	"github.com/xxxsen/notesync/internal/service"
	"github.com/xxxsen/notesync/test/testutil"
)

func TestAuthRegisterAndLogin(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	secret := []byte("test-jwt-secret")
	auth := service.NewAuthService(repo.NewUserRepo(db), secret, time.Hour)

	user, token, err := auth.Register(ctx, "Alice@Example.com", "hunter22pass")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)

	claims, err := jwt.ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)

	_, _, err = auth.Register(ctx, "alice@example.com", "hunter22pass")
	require.ErrorIs(t, err, appErr.ErrConflict)

	_, _, err = auth.Register(ctx, "bob@example.com", "short")
	require.ErrorIs(t, err, appErr.ErrInvalid)

	logged, _, err := auth.Login(ctx, "alice@example.com", "hunter22pass")
	require.NoError(t, err)
	require.Equal(t, user.ID, logged.ID)

	_, _, err = auth.Login(ctx, "alice@example.com", "wrong-password")
	require.ErrorIs(t, err, appErr.ErrUnauthorized)

	_, _, err = auth.Login(ctx, "nobody@example.com", "hunter22pass")
	require.ErrorIs(t, err, appErr.ErrUnauthorized)
}
