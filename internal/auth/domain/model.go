// Package domain contains core types for back-office authentication.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// AdminUser is a staff account with access to the back office.
type AdminUser struct {
	ID                  snowflake.ID `gorm:"primaryKey"`
	Email               string       `gorm:"column:email;not null;uniqueIndex"`
	DisplayName         string       `gorm:"column:display_name;type:text"`
	PasswordHash        string       `gorm:"column:password_hash;type:text;not null"`
	LastPasswordChanged *time.Time   `gorm:"column:last_password_changed"`
	CreatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (AdminUser) TableName() string { return "admin_users" }

// AdminSession is a persisted login session. Only the SHA-256 of the
// session token is stored.
type AdminSession struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	AdminUserID      snowflake.ID `gorm:"column:admin_user_id;not null;index"`
	SessionTokenHash string       `gorm:"column:session_token_hash;type:text;not null;uniqueIndex"`
	UserAgent        string       `gorm:"column:user_agent;type:text"`
	IPAddress        string       `gorm:"column:ip_address;type:text"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time   `gorm:"column:revoked_at"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	LastSeenAt       time.Time    `gorm:"column:last_seen_at;not null;default:CURRENT_TIMESTAMP"`
}

func (AdminSession) TableName() string { return "admin_sessions" }
