package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/guardline/aegis/internal/auth/domain"
	"github.com/guardline/aegis/internal/auth/password"
	"github.com/guardline/aegis/internal/clock"
	"github.com/guardline/aegis/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sessionTokenBytes = 32
	defaultSessionTTL = 7 * 24 * time.Hour

	minPasswordLength = 8
)

type Params struct {
	fx.In

	Config      config.Config
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	SessionRepo domain.SessionRepository
}

type Service struct {
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	sessionRepo domain.SessionRepository
	sessionTTL  time.Duration
}

func New(p Params) domain.Service {
	ttl := p.Config.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Service{
		log:         p.Log.Named("auth.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		sessionRepo: p.SessionRepo,
		sessionTTL:  ttl,
	}
}

func (s *Service) CreateAdmin(ctx context.Context, req domain.CreateAdminRequest) (*domain.AdminUser, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if len(strings.TrimSpace(req.Password)) < minPasswordLength {
		return nil, domain.ErrInvalidCredentials
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = defaultDisplayName(email)
	}
	user := &domain.AdminUser{
		ID:                  s.genID.Generate(),
		Email:               email,
		DisplayName:         displayName,
		PasswordHash:        hashed,
		LastPasswordChanged: &now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !password.Verify(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	rawToken, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session := &domain.AdminSession{
		ID:               s.genID.Generate(),
		AdminUserID:      user.ID,
		SessionTokenHash: hashToken(rawToken),
		UserAgent:        strings.TrimSpace(req.UserAgent),
		IPAddress:        strings.TrimSpace(req.IPAddress),
		ExpiresAt:        now.Add(s.sessionTTL),
		CreatedAt:        now,
		LastSeenAt:       now,
	}
	if err := s.sessionRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &domain.LoginResult{
		User:      user,
		RawToken:  rawToken,
		ExpiresAt: session.ExpiresAt,
		SessionID: session.ID,
	}, nil
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return domain.ErrInvalidSession
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.ErrInvalidSession
		}
		return err
	}

	return s.sessionRepo.RevokeSession(ctx, session.ID, s.clock.Now())
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.AdminSession, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, domain.ErrInvalidSession
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}

	now := s.clock.Now()
	if session.RevokedAt != nil {
		return nil, domain.ErrSessionRevoked
	}
	if now.After(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}

	if err := s.sessionRepo.UpdateLastSeen(ctx, session.ID, now); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID snowflake.ID, newPassword string) error {
	if len(strings.TrimSpace(newPassword)) < minPasswordLength {
		return domain.ErrInvalidCredentials
	}

	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		return err
	}

	hashed, err := password.Hash(newPassword)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	return s.repo.UpdateFields(ctx, userID, map[string]any{
		"password_hash":         hashed,
		"last_password_changed": &now,
		"updated_at":            now,
	})
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

func defaultDisplayName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if strings.TrimSpace(local) != "" {
		return strings.TrimSpace(local)
	}
	return email
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
