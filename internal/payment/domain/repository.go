package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertEvent records the event, returning false when the provider
	// event id was already recorded.
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, providerEventID string) (*EventRecord, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time, outcome Outcome) error
}
