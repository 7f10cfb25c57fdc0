// Package notification delivers templated email/SMS for booking and invoice
// events. Delivery is best effort: a failed send is logged and never rolls
// back the state change that triggered it.
package notification

import (
	"context"
	"fmt"
	"strings"

	bookingdomain "github.com/guardline/aegis/internal/booking/domain"
	invoicedomain "github.com/guardline/aegis/internal/invoice/domain"
	"github.com/guardline/aegis/internal/providers/email"
	"github.com/guardline/aegis/internal/providers/sms"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Trigger identifies why a notification is going out.
type Trigger string

const (
	TriggerConfirmation    Trigger = "confirmation"
	TriggerPaymentReminder Trigger = "payment_reminder"
	TriggerInvoice         Trigger = "invoice"
	TriggerStatusUpdate    Trigger = "status_update"
)

// Dispatcher sends a templated message for a booking event. The invoice
// argument is optional and only set for invoice-related triggers.
type Dispatcher interface {
	Notify(ctx context.Context, booking *bookingdomain.Booking, trigger Trigger, invoice *invoicedomain.Invoice) bool
}

type Params struct {
	fx.In

	Log   *zap.Logger
	Email email.Provider
	SMS   sms.Provider
}

type dispatcher struct {
	log   *zap.Logger
	email email.Provider
	sms   sms.Provider
}

func NewDispatcher(p Params) Dispatcher {
	return &dispatcher{
		log:   p.Log.Named("notification"),
		email: p.Email,
		sms:   p.SMS,
	}
}

func (d *dispatcher) Notify(ctx context.Context, booking *bookingdomain.Booking, trigger Trigger, invoice *invoicedomain.Invoice) bool {
	if booking == nil {
		return false
	}

	subject, body := render(booking, trigger, invoice)
	prefs := booking.ContactPrefs

	sendEmail := prefs.EmailEnabled && prefs.PreferredChannel != bookingdomain.ChannelPhone
	sendSMS := prefs.SMSEnabled && prefs.PreferredChannel != bookingdomain.ChannelEmail

	ok := true
	if sendEmail && strings.TrimSpace(booking.Email) != "" {
		if err := d.email.Send(ctx, []string{booking.Email}, subject, body); err != nil {
			d.log.Warn("email notification failed",
				zap.String("trigger", string(trigger)),
				zap.String("booking_id", booking.ID.String()),
				zap.Error(err),
			)
			ok = false
		}
	}
	if sendSMS && strings.TrimSpace(booking.Phone) != "" {
		if err := d.sms.Send(ctx, booking.Phone, subject); err != nil {
			d.log.Warn("sms notification failed",
				zap.String("trigger", string(trigger)),
				zap.String("booking_id", booking.ID.String()),
				zap.Error(err),
			)
			ok = false
		}
	}
	return ok
}

func render(booking *bookingdomain.Booking, trigger Trigger, invoice *invoicedomain.Invoice) (subject, body string) {
	eventDate := booking.EventDate.Format("2 January 2006")

	switch trigger {
	case TriggerConfirmation:
		subject = "We received your booking request"
		body = fmt.Sprintf(
			"<p>Hi %s,</p><p>Thanks for your request for %d guard(s) on %s at %s. Our team will review it and confirm shortly.</p>",
			booking.ClientName, booking.GuardCount, eventDate, booking.VenueAddress,
		)
	case TriggerStatusUpdate:
		subject = fmt.Sprintf("Your booking is now %s", booking.Status)
		body = fmt.Sprintf(
			"<p>Hi %s,</p><p>Your booking for %s has been updated to <b>%s</b>.</p>",
			booking.ClientName, eventDate, booking.Status,
		)
	case TriggerInvoice:
		subject = "Your invoice from Guardline Security"
		due := ""
		number := ""
		if invoice != nil {
			due = invoice.DueAt.Format("2 January 2006")
			number = invoice.InvoiceNumber
		}
		body = fmt.Sprintf(
			"<p>Hi %s,</p><p>Invoice %s for your booking on %s is ready. The deposit is due by %s.</p>",
			booking.ClientName, number, eventDate, due,
		)
	case TriggerPaymentReminder:
		subject = "Payment reminder for your upcoming booking"
		body = fmt.Sprintf(
			"<p>Hi %s,</p><p>A friendly reminder that payment for your booking on %s is due soon.</p>",
			booking.ClientName, eventDate,
		)
	default:
		subject = "Update from Guardline Security"
		body = fmt.Sprintf("<p>Hi %s,</p><p>There is an update on your booking.</p>", booking.ClientName)
	}
	return subject, body
}
