package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CreateAdmin(ctx context.Context, req CreateAdminRequest) (*AdminUser, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	Authenticate(ctx context.Context, rawToken string) (*AdminSession, error)
	ChangePassword(ctx context.Context, userID snowflake.ID, newPassword string) error
}

type CreateAdminRequest struct {
	Email       string
	Password    string
	DisplayName string
}

type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

type LoginResult struct {
	User      *AdminUser
	RawToken  string
	ExpiresAt time.Time
	SessionID snowflake.ID
}
