package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	bookingdomain "github.com/guardline/aegis/internal/booking/domain"
	bookingrepo "github.com/guardline/aegis/internal/booking/repository"
	bookingservice "github.com/guardline/aegis/internal/booking/service"
	"github.com/guardline/aegis/internal/clock"
	gatewaydomain "github.com/guardline/aegis/internal/gateway/domain"
	invoicedomain "github.com/guardline/aegis/internal/invoice/domain"
	invoicerepo "github.com/guardline/aegis/internal/invoice/repository"
	invoiceservice "github.com/guardline/aegis/internal/invoice/service"
	"github.com/guardline/aegis/internal/notification"
	"github.com/guardline/aegis/internal/payment/domain"
	"github.com/guardline/aegis/internal/payment/repository"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type noopDispatcher struct{}

func (noopDispatcher) Notify(context.Context, *bookingdomain.Booking, notification.Trigger, *invoicedomain.Invoice) bool {
	return true
}

type stubGateway struct {
	nextID int
}

func (g *stubGateway) ValidateDeposit(totalAmount, depositAmount int64) error {
	if totalAmount <= 0 {
		return bookingdomain.ErrInvalidTotalAmount
	}
	if depositAmount < 0 || depositAmount*4 < totalAmount {
		return bookingdomain.ErrDepositBelowMinimum
	}
	return nil
}

func (g *stubGateway) ComputePaymentSchedule(totalAmount int64, _ float64) (gatewaydomain.PaymentSchedule, error) {
	return gatewaydomain.PaymentSchedule{TotalAmount: totalAmount}, nil
}

func (g *stubGateway) CreateProviderInvoice(_ context.Context, _ gatewaydomain.CreateInvoiceParams) (gatewaydomain.ProviderInvoice, error) {
	g.nextID++
	return gatewaydomain.ProviderInvoice{ID: fmt.Sprintf("PINV-%d", g.nextID), Status: "DRAFT"}, nil
}

func (g *stubGateway) SendProviderInvoice(context.Context, string) error { return nil }

func (g *stubGateway) QueryPaymentStatus(_ context.Context, paymentID string) (gatewaydomain.ProviderPayment, error) {
	return gatewaydomain.ProviderPayment{PaymentID: paymentID, Status: "COMPLETED"}, nil
}

type reconcilerEnv struct {
	db         *gorm.DB
	svc        *Service
	bookingSvc bookingdomain.Service
	invoiceSvc invoicedomain.Service
	clock      *clock.FakeClock
}

func newReconcilerEnv(t *testing.T) *reconcilerEnv {
	t.Helper()

	dbConn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, dbConn.AutoMigrate(
		&bookingdomain.Booking{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceSequence{},
		&domain.EventRecord{},
	))

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	bookingSvc := bookingservice.New(bookingservice.Params{
		DB:         dbConn,
		Log:        log,
		GenID:      node,
		Clock:      fc,
		Repo:       bookingrepo.Provide(),
		Dispatcher: noopDispatcher{},
	})
	invoiceSvc := invoiceservice.New(invoiceservice.Params{
		DB:         dbConn,
		Log:        log,
		GenID:      node,
		Clock:      fc,
		Repo:       invoicerepo.Provide(),
		BookingSvc: bookingSvc,
		GatewaySvc: &stubGateway{},
		Dispatcher: noopDispatcher{},
	})
	svc := NewService(Params{
		DB:          dbConn,
		Log:         log,
		GenID:       node,
		Clock:       fc,
		Repo:        repository.Provide(),
		BookingRepo: bookingrepo.Provide(),
		BookingSvc:  bookingSvc,
		InvoiceRepo: invoicerepo.Provide(),
		InvoiceSvc:  invoiceSvc,
	})

	return &reconcilerEnv{db: dbConn, svc: svc, bookingSvc: bookingSvc, invoiceSvc: invoiceSvc, clock: fc}
}

// newBooking creates an approved booking. A non-empty providerPaymentID is
// linked as the payment correlation id, the way a checkout reference is
// registered before the provider's captures arrive.
func (e *reconcilerEnv) newBooking(t *testing.T, providerPaymentID string) *bookingdomain.Booking {
	t.Helper()
	booking, err := e.bookingSvc.Create(context.Background(), bookingdomain.CreateBookingRequest{
		ClientName:    "Acme Events",
		Email:         "ops@acme.example",
		Phone:         "+15550100",
		EventType:     "corporate",
		EventDate:     e.clock.Now().Add(14 * 24 * time.Hour),
		VenueAddress:  "1 Market St",
		GuardCount:    2,
		TotalAmount:   100000,
		DepositAmount: 25000,
	})
	assert.NoError(t, err)
	booking, err = e.bookingSvc.UpdateStatus(context.Background(), booking.ID, bookingdomain.StatusApproved, "")
	assert.NoError(t, err)

	if providerPaymentID != "" {
		booking, err = e.bookingSvc.SetPaymentReference(context.Background(), booking.ID, providerPaymentID)
		assert.NoError(t, err)
	}
	return booking
}

func event(id, eventType, resourceID string, amount int64) *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ProviderEventID: id,
		Type:            eventType,
		ResourceID:      resourceID,
		Amount:          amount,
		RawPayload:      []byte(fmt.Sprintf(`{"id":%q,"event_type":%q}`, id, eventType)),
	}
}

func TestProcessEventDepositVsFinal(t *testing.T) {
	env := newReconcilerEnv(t)
	ctx := context.Background()
	booking := env.newBooking(t, "CAP-1")

	// A partial capture is the deposit.
	outcome, err := env.svc.ProcessEvent(ctx, event("WH-1", domain.EventTypePaymentCompleted, "CAP-1", 25000))
	assert.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, outcome)

	updated, err := env.bookingSvc.Get(ctx, booking.ID)
	assert.NoError(t, err)
	assert.Equal(t, bookingdomain.PaymentStatusDepositPaid, updated.Payment.Status)

	// The balance capture brings the cumulative amount to the total and
	// settles the booking.
	outcome, err = env.svc.ProcessEvent(ctx, event("WH-2", domain.EventTypePaymentCompleted, "CAP-1", 75000))
	assert.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, outcome)

	updated, err = env.bookingSvc.Get(ctx, booking.ID)
	assert.NoError(t, err)
	assert.Equal(t, bookingdomain.PaymentStatusPaid, updated.Payment.Status)
	assert.Equal(t, int64(100000), updated.Payment.PaidAmount)
	assert.NotNil(t, updated.Payment.PaidAt)
}

func TestProcessEventPartialCapturesBelowTotalStayDeposit(t *testing.T) {
	env := newReconcilerEnv(t)
	ctx := context.Background()
	booking := env.newBooking(t, "CAP-1")

	outcome, err := env.svc.ProcessEvent(ctx, event("WH-1", domain.EventTypePaymentCompleted, "CAP-1", 25000))
	assert.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, outcome)

	// A second partial capture still short of the total accumulates without
	// settling.
	outcome, err = env.svc.ProcessEvent(ctx, event("WH-2", domain.EventTypePaymentCompleted, "CAP-1", 30000))
	assert.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, outcome)

	updated, err := env.bookingSvc.Get(ctx, booking.ID)
	assert.NoError(t, err)
	assert.Equal(t, bookingdomain.PaymentStatusDepositPaid, updated.Payment.Status)
	assert.Equal(t, int64(55000), updated.Payment.PaidAmount)
}

func TestProcessEventIdempotent(t *testing.T) {
	env := newReconcilerEnv(t)
	ctx := context.Background()
	booking := env.newBooking(t, "CAP-1")

	first, err := env.svc.ProcessEvent(ctx, event("WH-1", domain.EventTypePaymentCompleted, "CAP-1", 25000))
	assert.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, first)

	// Redelivery of the same provider event id short-circuits on the ledger.
	second, err := env.svc.ProcessEvent(ctx, event("WH-1", domain.EventTypePaymentCompleted, "CAP-1", 25000))
	assert.NoError(t, err)
	assert.Equal(t, domain.OutcomeDuplicate, second)

	updated, err := env.bookingSvc.Get(ctx, booking.ID)
	assert.NoError(t, err)
	assert.Equal(t, bookingdomain.PaymentStatusDepositPaid, updated.Payment.Status)
	assert.Equal(t, int64(25000), updated.Payment.PaidAmount)
}

func TestProcessEventNoMatch(t *testing.T) {
	env := newReconcilerEnv(t)

	outcome, err := env.svc.ProcessEvent(context.Background(), event("WH-1", domain.EventTypePaymentCompleted, "CAP-unknown", 25000))
	assert.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoMatch, outcome)

	// The ledger keeps the event for later reconciliation.
	var count int64
	assert.NoError(t, env.db.Model(&domain.EventRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestProcessEventUnknownType(t *testing.T) {
	env := newReconcilerEnv(t)

	outcome, err := env.svc.ProcessEvent(context.Background(), event("WH-1", "payment_refunded", "CAP-1", 25000))
	assert.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnknown, outcome)
}

func TestProcessEventInvoicePaidCascade(t *testing.T) {
	env := newReconcilerEnv(t)
	ctx := context.Background()
	booking := env.newBooking(t, "")

	invoice, err := env.invoiceSvc.Create(ctx, invoicedomain.CreateInvoiceRequest{
		BookingID:     booking.ID,
		TotalAmount:   100000,
		DepositAmount: 25000,
	})
	assert.NoError(t, err)
	_, err = env.invoiceSvc.Send(ctx, invoice.ID)
	assert.NoError(t, err)

	occurredAt := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	evt := event("WH-1", domain.EventTypeInvoicePaid, invoice.ProviderInvoiceID, 100000)
	evt.OccurredAt = occurredAt

	outcome, err := env.svc.ProcessEvent(ctx, evt)
	assert.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, outcome)

	paid, err := env.invoiceSvc.GetByID(ctx, invoice.ID)
	assert.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)

	updated, err := env.bookingSvc.Get(ctx, booking.ID)
	assert.NoError(t, err)
	assert.Equal(t, bookingdomain.PaymentStatusPaid, updated.Payment.Status)
}

func TestProcessEventInvoicePaidBeforeInvoiceExists(t *testing.T) {
	env := newReconcilerEnv(t)

	outcome, err := env.svc.ProcessEvent(context.Background(), event("WH-1", domain.EventTypeInvoicePaid, "PINV-nope", 100000))
	assert.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoMatch, outcome)
}

func TestProcessEventValidation(t *testing.T) {
	env := newReconcilerEnv(t)
	ctx := context.Background()

	_, err := env.svc.ProcessEvent(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	_, err = env.svc.ProcessEvent(ctx, event("  ", domain.EventTypePaymentCompleted, "CAP-1", 1))
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	_, err = env.svc.ProcessEvent(ctx, event("WH-1", "  ", "CAP-1", 1))
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	evt := event("WH-1", domain.EventTypePaymentCompleted, "CAP-1", 1)
	evt.RawPayload = []byte(`{broken`)
	_, err = env.svc.ProcessEvent(ctx, evt)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}
