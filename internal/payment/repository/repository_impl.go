package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/guardline/aegis/internal/payment/domain"
	pkgdb "github.com/guardline/aegis/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.EventRecord) (bool, error) {
	err := db.WithContext(ctx).Create(event).Error
	if err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, providerEventID string) (*domain.EventRecord, error) {
	providerEventID = strings.TrimSpace(providerEventID)
	if providerEventID == "" {
		return nil, nil
	}
	var event domain.EventRecord
	err := db.WithContext(ctx).
		Where("provider_event_id = ?", providerEventID).
		Take(&event).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *repo) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time, outcome domain.Outcome) error {
	return db.WithContext(ctx).
		Model(&domain.EventRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"processed_at": processedAt,
			"outcome":      outcome,
		}).Error
}
