// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/guardline/aegis/internal/booking/domain"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Invoice is a billing document derived from an approved booking. It holds a
// weak reference to the booking; it never drives the booking's lifecycle.
type Invoice struct {
	ID                snowflake.ID                `json:"id" gorm:"primaryKey"`
	InvoiceNumber     string                      `json:"invoice_number" gorm:"type:text;not null;uniqueIndex"`
	BookingID         snowflake.ID                `json:"booking_id" gorm:"not null;index"`
	ProviderInvoiceID string                      `json:"provider_invoice_id" gorm:"type:text;uniqueIndex:idx_invoices_provider_invoice_id,where:provider_invoice_id <> ''"`
	Amount            int64                       `json:"amount" gorm:"not null"`
	DepositAmount     int64                       `json:"deposit_amount" gorm:"not null"`
	Status            InvoiceStatus               `json:"status" gorm:"type:text;not null;default:'draft';index"`
	DueAt             time.Time                   `json:"due_at" gorm:"not null;index"`
	PaidAt            *time.Time                  `json:"paid_at"`
	Method            bookingdomain.PaymentMethod `json:"method" gorm:"type:text;not null;default:'gateway'"`
	ProviderPaymentID string                      `json:"provider_payment_id" gorm:"type:text"`
	Notes             string                      `json:"notes" gorm:"type:text"`
	ReminderSentAt    *time.Time                  `json:"reminder_sent_at"`
	CreatedAt         time.Time                   `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time                   `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceSequence is the single-row counter backing invoice numbers. It is
// advanced with an atomic UPDATE so concurrent creations never share a number.
type InvoiceSequence struct {
	ID    int   `gorm:"primaryKey"`
	Value int64 `gorm:"not null"`
}

// TableName sets the database table name.
func (InvoiceSequence) TableName() string { return "invoice_sequences" }

// statusTransitions is the explicit invoice state machine. Paid and
// cancelled are terminal.
var statusTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:   {InvoiceStatusSent, InvoiceStatusCancelled},
	InvoiceStatusSent:    {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusOverdue: {InvoiceStatusPaid, InvoiceStatusCancelled},
}

// CanTransition reports whether an invoice may move between two states.
func CanTransition(from, to InvoiceStatus) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
