package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/guardline/aegis/pkg/db/pagination"
)

type CreateBookingRequest struct {
	ClientName          string        `json:"client_name"`
	Email               string        `json:"email"`
	Phone               string        `json:"phone"`
	EventType           string        `json:"event_type"`
	EventDate           time.Time     `json:"event_date"`
	VenueAddress        string        `json:"venue_address"`
	GuardCount          int           `json:"guard_count"`
	SpecialRequirements string        `json:"special_requirements"`
	TotalAmount         int64         `json:"total_amount"`
	DepositAmount       int64         `json:"deposit_amount"`
	Method              PaymentMethod `json:"method"`
	ContactPrefs        *ContactPrefs `json:"contact_prefs"`
}

type ListBookingRequest struct {
	Filter ListBookingFilter
	Page   pagination.Pagination
}

type ListBookingResponse struct {
	pagination.PageInfo
	Bookings []*Booking `json:"bookings"`
}

// Service owns the booking status state machine and the coupling between
// status and payment phase.
type Service interface {
	Create(ctx context.Context, req CreateBookingRequest) (*Booking, error)
	Get(ctx context.Context, id snowflake.ID) (*Booking, error)
	List(ctx context.Context, req ListBookingRequest) (ListBookingResponse, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, status Status, adminNotes string) (*Booking, error)

	// RecordDeposit and RecordFinalPayment are the reconciler-only write
	// paths for payment state. Amounts accumulate across captures; a fully
	// paid booking is never moved back.
	RecordDeposit(ctx context.Context, id snowflake.ID, amount int64, providerPaymentID string) (*Booking, error)
	RecordFinalPayment(ctx context.Context, id snowflake.ID, amount int64, providerPaymentID string) (*Booking, error)

	// SetPaymentReference links the booking to the provider payment id the
	// reconciler matches payment_completed events against.
	SetPaymentReference(ctx context.Context, id snowflake.ID, providerPaymentID string) (*Booking, error)

	// MarkPaymentOverdue flags the payment sub-record once an invoice sits
	// past its due date. No-op when the payment is already settled.
	MarkPaymentOverdue(ctx context.Context, id snowflake.ID) (*Booking, error)
}
