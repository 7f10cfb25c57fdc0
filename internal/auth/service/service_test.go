package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/guardline/aegis/internal/auth/domain"
	"github.com/guardline/aegis/internal/auth/repository"
	"github.com/guardline/aegis/internal/clock"
	"github.com/guardline/aegis/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()

	dbConn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, dbConn.AutoMigrate(&domain.AdminUser{}, &domain.AdminSession{}))

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	repo, sessionRepo := repository.New(dbConn)
	fc := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := New(Params{
		Config:      config.Config{},
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       fc,
		Repo:        repo,
		SessionRepo: sessionRepo,
	})
	return svc, fc
}

func createAdmin(t *testing.T, svc domain.Service) *domain.AdminUser {
	t.Helper()
	user, err := svc.CreateAdmin(context.Background(), domain.CreateAdminRequest{
		Email:    "admin@guardline.example",
		Password: "correct horse battery",
	})
	assert.NoError(t, err)
	return user
}

func TestCreateAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user := createAdmin(t, svc)
	assert.Equal(t, "admin@guardline.example", user.Email)
	assert.Equal(t, "admin", user.DisplayName)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "correct horse battery", user.PasswordHash)

	// Same email again, regardless of case.
	_, err := svc.CreateAdmin(ctx, domain.CreateAdminRequest{
		Email:    "Admin@Guardline.example",
		Password: "another password",
	})
	assert.ErrorIs(t, err, domain.ErrUserExists)

	_, err = svc.CreateAdmin(ctx, domain.CreateAdminRequest{Email: "not-an-email", Password: "long enough pw"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.CreateAdmin(ctx, domain.CreateAdminRequest{Email: "short@pw.example", Password: "short"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLogin(t *testing.T) {
	svc, fc := newTestService(t)
	ctx := context.Background()
	user := createAdmin(t, svc)

	result, err := svc.Login(ctx, domain.LoginRequest{
		Email:    "admin@guardline.example",
		Password: "correct horse battery",
	})
	assert.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	assert.NotEmpty(t, result.RawToken)
	assert.Equal(t, fc.Now().Add(7*24*time.Hour), result.ExpiresAt)

	_, err = svc.Login(ctx, domain.LoginRequest{
		Email:    "admin@guardline.example",
		Password: "wrong password",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	// Unknown accounts fail the same way as bad passwords.
	_, err = svc.Login(ctx, domain.LoginRequest{
		Email:    "nobody@guardline.example",
		Password: "correct horse battery",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthenticateLifecycle(t *testing.T) {
	svc, fc := newTestService(t)
	ctx := context.Background()
	user := createAdmin(t, svc)

	result, err := svc.Login(ctx, domain.LoginRequest{
		Email:    "admin@guardline.example",
		Password: "correct horse battery",
	})
	assert.NoError(t, err)

	session, err := svc.Authenticate(ctx, result.RawToken)
	assert.NoError(t, err)
	assert.Equal(t, user.ID, session.AdminUserID)

	_, err = svc.Authenticate(ctx, "garbage-token")
	assert.ErrorIs(t, err, domain.ErrInvalidSession)

	_, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidSession)

	// Expired sessions are rejected.
	fc.Advance(7*24*time.Hour + time.Minute)
	_, err = svc.Authenticate(ctx, result.RawToken)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	createAdmin(t, svc)

	result, err := svc.Login(ctx, domain.LoginRequest{
		Email:    "admin@guardline.example",
		Password: "correct horse battery",
	})
	assert.NoError(t, err)

	assert.NoError(t, svc.Logout(ctx, result.RawToken))

	_, err = svc.Authenticate(ctx, result.RawToken)
	assert.ErrorIs(t, err, domain.ErrSessionRevoked)

	assert.ErrorIs(t, svc.Logout(ctx, ""), domain.ErrInvalidSession)
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user := createAdmin(t, svc)

	assert.ErrorIs(t, svc.ChangePassword(ctx, user.ID, "short"), domain.ErrInvalidCredentials)

	assert.NoError(t, svc.ChangePassword(ctx, user.ID, "a brand new password"))

	_, err := svc.Login(ctx, domain.LoginRequest{
		Email:    "admin@guardline.example",
		Password: "correct horse battery",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, domain.LoginRequest{
		Email:    "admin@guardline.example",
		Password: "a brand new password",
	})
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.ChangePassword(ctx, user.ID+1, "a brand new password"), domain.ErrUserNotFound)
}
