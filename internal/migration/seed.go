package migration

import (
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/guardline/aegis/internal/auth/domain"
	"github.com/guardline/aegis/internal/auth/password"
	"gorm.io/gorm"
)

// EnsureBootstrapAdmin creates the first back-office account when the
// admin_users table is empty. Credentials come from the environment; when
// they are unset the install stays admin-less until one is created by hand.
func EnsureBootstrapAdmin(db *gorm.DB, genID *snowflake.Node, email, plaintext string) error {
	if email == "" || plaintext == "" {
		return nil
	}

	var count int64
	if err := db.Model(&authdomain.AdminUser{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := password.Hash(plaintext)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	return db.Create(&authdomain.AdminUser{
		ID:                  genID.Generate(),
		Email:               email,
		DisplayName:         "Administrator",
		PasswordHash:        hashed,
		LastPasswordChanged: &now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}).Error
}
