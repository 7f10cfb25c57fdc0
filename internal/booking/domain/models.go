// Package domain contains persistence models for guard-service bookings.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status represents booking lifecycle states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// PaymentStatus tracks how much of the engagement has been paid.
type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusDepositPaid PaymentStatus = "deposit_paid"
	PaymentStatusPaid        PaymentStatus = "paid"
	PaymentStatusOverdue     PaymentStatus = "overdue"
)

// PaymentMethod is how the client settles the engagement.
type PaymentMethod string

const (
	PaymentMethodGateway PaymentMethod = "gateway"
	PaymentMethodCash    PaymentMethod = "cash"
	PaymentMethodOther   PaymentMethod = "other"
)

// Channel is the client's preferred contact channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
	ChannelBoth  Channel = "both"
)

const (
	// MinDepositFraction is the minimum deposit relative to the total amount.
	MinDepositFraction = 0.25
	// MinEventLeadTime is how far in the future an event date must be at intake.
	MinEventLeadTime = 7 * 24 * time.Hour
)

// Payment is the payment sub-record embedded in a Booking. The booking owns
// it exclusively; only the lifecycle service and the webhook reconciler
// write to it.
type Payment struct {
	TotalAmount       int64         `json:"total_amount" gorm:"not null;default:0"`
	DepositAmount     int64         `json:"deposit_amount" gorm:"not null;default:0"`
	Status            PaymentStatus `json:"status" gorm:"type:text;not null;default:'pending'"`
	PaidAmount        int64         `json:"paid_amount" gorm:"not null;default:0"`
	PaidAt            *time.Time    `json:"paid_at"`
	Method            PaymentMethod `json:"method" gorm:"type:text;not null;default:'gateway'"`
	ProviderPaymentID string        `json:"provider_payment_id" gorm:"type:text;index"`
}

// ContactPrefs records how the client wants to be reached.
type ContactPrefs struct {
	EmailEnabled     bool    `json:"email_enabled" gorm:"not null;default:true"`
	SMSEnabled       bool    `json:"sms_enabled" gorm:"not null;default:false"`
	PreferredChannel Channel `json:"preferred_channel" gorm:"type:text;not null;default:'email'"`
}

// Booking represents a client's request for guard services.
type Booking struct {
	ID                  snowflake.ID `json:"id" gorm:"primaryKey"`
	ClientName          string       `json:"client_name" gorm:"type:text;not null"`
	Email               string       `json:"email" gorm:"type:text;not null;index"`
	Phone               string       `json:"phone" gorm:"type:text;not null"`
	EventType           string       `json:"event_type" gorm:"type:text;not null"`
	EventDate           time.Time    `json:"event_date" gorm:"not null;index"`
	VenueAddress        string       `json:"venue_address" gorm:"type:text;not null"`
	GuardCount          int          `json:"guard_count" gorm:"not null"`
	SpecialRequirements string       `json:"special_requirements" gorm:"type:text"`
	Status              Status       `json:"status" gorm:"type:text;not null;default:'pending';index"`
	AdminNotes          string       `json:"admin_notes" gorm:"type:text"`
	Payment             Payment      `json:"payment" gorm:"embedded;embeddedPrefix:payment_"`
	ContactPrefs        ContactPrefs `json:"contact_prefs" gorm:"embedded;embeddedPrefix:contact_"`
	CreatedAt           time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Booking) TableName() string { return "bookings" }

// FullyPaid reports whether the client has settled the entire amount.
func (b *Booking) FullyPaid() bool {
	return b.Payment.Status == PaymentStatusPaid
}

// ValidStatus reports whether s is one of the known booking states.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// transitions is the explicit status state machine. Rejected is terminal:
// a rejected booking is never revived, the client submits a new request.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusCompleted},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
