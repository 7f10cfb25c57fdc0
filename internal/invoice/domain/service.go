package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/guardline/aegis/pkg/db/pagination"
)

type CreateInvoiceRequest struct {
	BookingID     snowflake.ID `json:"booking_id"`
	TotalAmount   int64        `json:"total_amount"`
	DepositAmount int64        `json:"deposit_amount"`
	ServiceType   string       `json:"service_type"`
	DueAt         time.Time    `json:"due_at"`
	Notes         string       `json:"notes"`
}

type ListInvoiceRequest struct {
	Filter ListInvoiceFilter
	Page   pagination.Pagination
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []*Invoice `json:"invoices"`
}

type Service interface {
	// Create validates the deposit rule, creates the provider-side invoice
	// first, and only persists the local record once the provider confirms.
	Create(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Invoice, error)
	GetByProviderInvoiceID(ctx context.Context, providerInvoiceID string) (*Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	// Send triggers provider delivery and advances draft -> sent.
	Send(ctx context.Context, id snowflake.ID) (*Invoice, error)
	Cancel(ctx context.Context, id snowflake.ID) (*Invoice, error)
	// MarkPaid settles the invoice and cascades to the owning booking's
	// payment sub-record. Idempotent: settling a paid invoice is a no-op.
	MarkPaid(ctx context.Context, id snowflake.ID, providerPaymentID string, paidAt time.Time) (*Invoice, error)
	// MarkOverdue advances sent -> overdue and flags the booking payment.
	MarkOverdue(ctx context.Context, id snowflake.ID) (*Invoice, error)
}
