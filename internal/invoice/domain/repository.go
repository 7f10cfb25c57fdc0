package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/guardline/aegis/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListInvoiceFilter struct {
	BookingID snowflake.ID
	Status    InvoiceStatus
	DueBefore *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByProviderInvoiceID(ctx context.Context, db *gorm.DB, providerInvoiceID string) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListInvoiceFilter, page pagination.Pagination) ([]*Invoice, error)
	// UpdateStatus writes status, paid fields and updated_at only.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status InvoiceStatus, paidAt *time.Time, providerPaymentID string, updatedAt time.Time) (int64, error)
	MarkReminderSent(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	// NextSequence advances the invoice counter atomically and returns the
	// new value. Must be called inside the transaction inserting the invoice.
	NextSequence(ctx context.Context, tx *gorm.DB) (int64, error)
	// ListDueForReminder returns sent invoices due within the window that
	// have not had a reminder yet.
	ListDueForReminder(ctx context.Context, db *gorm.DB, dueBefore time.Time, limit int) ([]*Invoice, error)
	// ListOverdue returns sent invoices whose due date passed before cutoff.
	ListOverdue(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]*Invoice, error)
}
