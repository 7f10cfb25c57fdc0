package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, user *AdminUser) error
	FindByEmail(ctx context.Context, email string) (*AdminUser, error)
	FindByID(ctx context.Context, id snowflake.ID) (*AdminUser, error)
	UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session *AdminSession) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*AdminSession, error)
	UpdateLastSeen(ctx context.Context, sessionID snowflake.ID, lastSeen time.Time) error
	RevokeSession(ctx context.Context, sessionID snowflake.ID, revokedAt time.Time) error
}
