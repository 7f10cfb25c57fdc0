package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventRecord is the durable ledger of received provider events. The unique
// provider event id is the idempotency key for at-least-once delivery; the
// raw payload is kept so unmatched events can be reconciled later.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null;uniqueIndex"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	ResourceID      string         `json:"resource_id" gorm:"type:text;index"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	Outcome         string         `json:"outcome" gorm:"type:text"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

// TableName sets the database table name.
func (EventRecord) TableName() string { return "payment_events" }

const (
	EventTypePaymentCompleted = "payment_completed"
	EventTypeInvoicePaid      = "invoice_paid"
)

// WebhookEvent is the canonical provider event parsed from the envelope.
type WebhookEvent struct {
	ProviderEventID string
	Type            string
	// ResourceID is the provider payment id for payment_completed events
	// and the provider invoice id for invoice_paid events.
	ResourceID string
	Amount     int64
	OccurredAt time.Time
	RawPayload []byte
}

// Outcome classifies what a processed event did to local state.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeNoMatch   Outcome = "no_match"
	OutcomeUnknown   Outcome = "unknown"
)

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidEvent     = errors.New("invalid_event")
)

// Service is the webhook ingestion surface. Signature verification happens
// before any parsing or state change.
type Service interface {
	IngestWebhook(ctx context.Context, payload []byte, headers http.Header) (Outcome, error)
}
