package notification

import (
	"context"
	"errors"
	"testing"

	bookingdomain "github.com/guardline/aegis/internal/booking/domain"
	invoicedomain "github.com/guardline/aegis/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeEmail struct {
	err  error
	sent [][]string
}

func (f *fakeEmail) Send(_ context.Context, to []string, _, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

type fakeSMS struct {
	err  error
	sent []string
}

func (f *fakeSMS) Send(_ context.Context, to string, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

func newTestDispatcher(emailP *fakeEmail, smsP *fakeSMS) Dispatcher {
	return NewDispatcher(Params{
		Log:   zap.NewNop(),
		Email: emailP,
		SMS:   smsP,
	})
}

func testBooking(prefs bookingdomain.ContactPrefs) *bookingdomain.Booking {
	return &bookingdomain.Booking{
		ClientName:   "Acme Events",
		Email:        "ops@acme.example",
		Phone:        "+15550100",
		GuardCount:   2,
		ContactPrefs: prefs,
	}
}

func TestNotifyChannelSelection(t *testing.T) {
	ctx := context.Background()

	// Email preference sends email only.
	emailP, smsP := &fakeEmail{}, &fakeSMS{}
	d := newTestDispatcher(emailP, smsP)
	ok := d.Notify(ctx, testBooking(bookingdomain.ContactPrefs{
		EmailEnabled:     true,
		SMSEnabled:       true,
		PreferredChannel: bookingdomain.ChannelEmail,
	}), TriggerConfirmation, nil)
	assert.True(t, ok)
	assert.Len(t, emailP.sent, 1)
	assert.Empty(t, smsP.sent)

	// Phone preference sends SMS only.
	emailP, smsP = &fakeEmail{}, &fakeSMS{}
	d = newTestDispatcher(emailP, smsP)
	ok = d.Notify(ctx, testBooking(bookingdomain.ContactPrefs{
		EmailEnabled:     true,
		SMSEnabled:       true,
		PreferredChannel: bookingdomain.ChannelPhone,
	}), TriggerConfirmation, nil)
	assert.True(t, ok)
	assert.Empty(t, emailP.sent)
	assert.Equal(t, []string{"+15550100"}, smsP.sent)

	// "both" fans out to both channels.
	emailP, smsP = &fakeEmail{}, &fakeSMS{}
	d = newTestDispatcher(emailP, smsP)
	ok = d.Notify(ctx, testBooking(bookingdomain.ContactPrefs{
		EmailEnabled:     true,
		SMSEnabled:       true,
		PreferredChannel: bookingdomain.ChannelBoth,
	}), TriggerConfirmation, nil)
	assert.True(t, ok)
	assert.Len(t, emailP.sent, 1)
	assert.Len(t, smsP.sent, 1)

	// Disabled channels stay silent even when preferred.
	emailP, smsP = &fakeEmail{}, &fakeSMS{}
	d = newTestDispatcher(emailP, smsP)
	ok = d.Notify(ctx, testBooking(bookingdomain.ContactPrefs{
		PreferredChannel: bookingdomain.ChannelEmail,
	}), TriggerConfirmation, nil)
	assert.True(t, ok)
	assert.Empty(t, emailP.sent)
	assert.Empty(t, smsP.sent)
}

func TestNotifyReportsDeliveryFailure(t *testing.T) {
	emailP := &fakeEmail{err: errors.New("smtp down")}
	d := newTestDispatcher(emailP, &fakeSMS{})

	ok := d.Notify(context.Background(), testBooking(bookingdomain.ContactPrefs{
		EmailEnabled:     true,
		PreferredChannel: bookingdomain.ChannelEmail,
	}), TriggerPaymentReminder, nil)
	assert.False(t, ok)
}

func TestNotifyNilBooking(t *testing.T) {
	d := newTestDispatcher(&fakeEmail{}, &fakeSMS{})
	assert.False(t, d.Notify(context.Background(), nil, TriggerConfirmation, nil))
}

func TestNotifyInvoiceTriggerIncludesNumber(t *testing.T) {
	emailP := &fakeEmail{}
	d := newTestDispatcher(emailP, &fakeSMS{})

	invoice := &invoicedomain.Invoice{InvoiceNumber: "INV-000001"}
	ok := d.Notify(context.Background(), testBooking(bookingdomain.ContactPrefs{
		EmailEnabled:     true,
		PreferredChannel: bookingdomain.ChannelEmail,
	}), TriggerInvoice, invoice)
	assert.True(t, ok)
	assert.Len(t, emailP.sent, 1)
}
