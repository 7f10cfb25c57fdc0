package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/guardline/aegis/pkg/db/pagination"
	"gorm.io/gorm"
)

// PaymentUpdate is the allow-list of payment fields the reconciler may write.
type PaymentUpdate struct {
	Status            PaymentStatus
	PaidAmount        int64
	PaidAt            time.Time
	ProviderPaymentID string
}

type ListBookingFilter struct {
	Status    Status
	Email     string
	EventFrom *time.Time
	EventTo   *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, booking *Booking) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Booking, error)
	FindByProviderPaymentID(ctx context.Context, db *gorm.DB, providerPaymentID string) (*Booking, error)
	List(ctx context.Context, db *gorm.DB, filter ListBookingFilter, page pagination.Pagination) ([]*Booking, error)
	// UpdateStatus writes status, admin_notes and updated_at only.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, adminNotes string, updatedAt time.Time) (int64, error)
	// UpdatePayment writes the payment_* columns only.
	UpdatePayment(ctx context.Context, db *gorm.DB, id snowflake.ID, update PaymentUpdate, updatedAt time.Time) (int64, error)
	// SetProviderPaymentID writes the payment correlation id only.
	SetProviderPaymentID(ctx context.Context, db *gorm.DB, id snowflake.ID, providerPaymentID string, updatedAt time.Time) (int64, error)
}
