// Package domain defines the stable interface in front of the external
// payment/invoicing provider.
package domain

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// GatewayError wraps a provider or network failure. It is retryable and must
// never be converted into a local domain state change.
type GatewayError struct {
	Op     string
	Status int // provider HTTP status, 0 for transport failures
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("gateway %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may safely retry the operation.
// Transport errors and timeouts carry no provider status.
func (e *GatewayError) Retryable() bool {
	return e.Status == 0 || e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// CreateInvoiceParams describes the provider-side invoice to create. The
// minimum partial payment is set to the deposit so the client can pay the
// deposit first and the balance later.
type CreateInvoiceParams struct {
	Reference     string // local invoice number
	ClientName    string
	ClientEmail   string
	Description   string
	Amount        int64
	DepositAmount int64
	Currency      string
	DueAt         time.Time
}

// ProviderInvoice is the provider's view of a created invoice.
type ProviderInvoice struct {
	ID     string
	Status string
}

// ProviderPayment is a normalized provider payment status.
type ProviderPayment struct {
	PaymentID string
	Status    string
	Amount    int64
}

// Client is the raw provider API surface. All calls have bounded timeouts
// and return *GatewayError on provider or network failure.
type Client interface {
	CreateInvoice(ctx context.Context, params CreateInvoiceParams) (ProviderInvoice, error)
	SendInvoice(ctx context.Context, providerInvoiceID string) error
	GetPayment(ctx context.Context, paymentID string) (ProviderPayment, error)
}

// ScheduleEntryType labels a payment schedule line.
type ScheduleEntryType string

const (
	ScheduleEntryDeposit ScheduleEntryType = "deposit"
	ScheduleEntryFinal   ScheduleEntryType = "final"
)

type ScheduleEntry struct {
	Type   ScheduleEntryType `json:"type"`
	Amount int64             `json:"amount"`
	DueAt  time.Time         `json:"due_at"`
}

// PaymentSchedule is the deterministic deposit/final split shown to clients.
type PaymentSchedule struct {
	TotalAmount   int64           `json:"total_amount"`
	DepositAmount int64           `json:"deposit_amount"`
	FinalAmount   int64           `json:"final_amount"`
	Schedule      []ScheduleEntry `json:"schedule"`
}

// Service isolates all interaction with the payment provider and enforces
// the payment business rules that must hold regardless of provider.
type Service interface {
	// ValidateDeposit is pure; it must be called before any provider
	// invoice is created.
	ValidateDeposit(totalAmount, depositAmount int64) error
	// ComputePaymentSchedule derives the deposit/final split with due dates
	// relative to the current clock time.
	ComputePaymentSchedule(totalAmount int64, depositFraction float64) (PaymentSchedule, error)
	CreateProviderInvoice(ctx context.Context, params CreateInvoiceParams) (ProviderInvoice, error)
	SendProviderInvoice(ctx context.Context, providerInvoiceID string) error
	QueryPaymentStatus(ctx context.Context, paymentID string) (ProviderPayment, error)
}
