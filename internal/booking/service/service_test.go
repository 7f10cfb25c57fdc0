package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/guardline/aegis/internal/booking/domain"
	"github.com/guardline/aegis/internal/booking/repository"
	"github.com/guardline/aegis/internal/clock"
	invoicedomain "github.com/guardline/aegis/internal/invoice/domain"
	"github.com/guardline/aegis/internal/notification"
	"github.com/guardline/aegis/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type noopDispatcher struct{}

func (noopDispatcher) Notify(context.Context, *domain.Booking, notification.Trigger, *invoicedomain.Invoice) bool {
	return true
}

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()

	dbConn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, dbConn.AutoMigrate(&domain.Booking{}))

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:         dbConn,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fc,
		Repo:       repository.Provide(),
		Dispatcher: noopDispatcher{},
	})
	return svc, fc
}

func validRequest(now time.Time) domain.CreateBookingRequest {
	return domain.CreateBookingRequest{
		ClientName:    "Acme Events",
		Email:         "ops@acme.example",
		Phone:         "+15550100",
		EventType:     "corporate",
		EventDate:     now.Add(14 * 24 * time.Hour),
		VenueAddress:  "1 Market St",
		GuardCount:    4,
		TotalAmount:   100000,
		DepositAmount: 25000,
	}
}

func TestCreateBookingDefaults(t *testing.T) {
	svc, fc := newTestService(t)

	booking, err := svc.Create(context.Background(), validRequest(fc.Now()))
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusPending, booking.Status)
	assert.Equal(t, domain.PaymentStatusPending, booking.Payment.Status)
	assert.Equal(t, domain.PaymentMethodGateway, booking.Payment.Method)
	assert.True(t, booking.ContactPrefs.EmailEnabled)
	assert.Equal(t, domain.ChannelEmail, booking.ContactPrefs.PreferredChannel)
	assert.NotZero(t, booking.ID)
}

func TestCreateBookingEventDateLeadTime(t *testing.T) {
	svc, fc := newTestService(t)
	now := fc.Now()

	req := validRequest(now)
	req.EventDate = now.Add(domain.MinEventLeadTime - time.Hour)
	_, err := svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrEventDateTooSoon)

	// Exactly seven days out is accepted.
	req.EventDate = now.Add(domain.MinEventLeadTime)
	_, err = svc.Create(context.Background(), req)
	assert.NoError(t, err)
}

func TestCreateBookingDepositMinimum(t *testing.T) {
	svc, fc := newTestService(t)
	now := fc.Now()

	req := validRequest(now)
	req.TotalAmount = 100000
	req.DepositAmount = 24999
	_, err := svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrDepositBelowMinimum)

	// Exactly 25% passes.
	req.DepositAmount = 25000
	_, err = svc.Create(context.Background(), req)
	assert.NoError(t, err)

	req.TotalAmount = -5
	_, err = svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidTotalAmount)
}

func TestCreateBookingGuardCount(t *testing.T) {
	svc, fc := newTestService(t)

	req := validRequest(fc.Now())
	req.GuardCount = 0
	_, err := svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidGuardCount)
}

func TestCreateBookingRequiredContactFields(t *testing.T) {
	svc, fc := newTestService(t)
	ctx := context.Background()

	req := validRequest(fc.Now())
	req.Phone = "   "
	_, err := svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrMissingContactPhone)

	req = validRequest(fc.Now())
	req.VenueAddress = ""
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrMissingVenueAddress)
}

func TestStatusTransitions(t *testing.T) {
	svc, fc := newTestService(t)
	ctx := context.Background()

	booking, err := svc.Create(ctx, validRequest(fc.Now()))
	assert.NoError(t, err)

	// pending -> completed is not a legal jump.
	_, err = svc.UpdateStatus(ctx, booking.ID, domain.StatusCompleted, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	approved, err := svc.UpdateStatus(ctx, booking.ID, domain.StatusApproved, "confirmed by phone")
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)
	assert.Equal(t, "confirmed by phone", approved.AdminNotes)

	completed, err := svc.UpdateStatus(ctx, booking.ID, domain.StatusCompleted, "")
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, completed.Status)

	_, err = svc.UpdateStatus(ctx, booking.ID, domain.StatusApproved, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestRejectedIsTerminal(t *testing.T) {
	svc, fc := newTestService(t)
	ctx := context.Background()

	booking, err := svc.Create(ctx, validRequest(fc.Now()))
	assert.NoError(t, err)

	rejected, err := svc.UpdateStatus(ctx, booking.ID, domain.StatusRejected, "venue unavailable")
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)

	for _, next := range []domain.Status{domain.StatusPending, domain.StatusApproved, domain.StatusCompleted} {
		_, err = svc.UpdateStatus(ctx, booking.ID, next, "")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, "rejected -> %s should fail", next)
	}
}

func TestUpdateStatusUnknownValue(t *testing.T) {
	svc, fc := newTestService(t)

	booking, err := svc.Create(context.Background(), validRequest(fc.Now()))
	assert.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), booking.ID, domain.Status("archived"), "")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestRecordPaymentsAccumulate(t *testing.T) {
	svc, fc := newTestService(t)
	ctx := context.Background()

	booking, err := svc.Create(ctx, validRequest(fc.Now()))
	assert.NoError(t, err)

	deposited, err := svc.RecordDeposit(ctx, booking.ID, 25000, "CAP-001")
	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusDepositPaid, deposited.Payment.Status)
	assert.Equal(t, int64(25000), deposited.Payment.PaidAmount)

	// The remaining balance arrives as a second capture and settles the
	// booking at the full total.
	fc.Advance(time.Hour)
	paid, err := svc.RecordFinalPayment(ctx, booking.ID, 75000, "CAP-002")
	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, paid.Payment.Status)
	assert.Equal(t, int64(100000), paid.Payment.PaidAmount)
	assert.True(t, paid.FullyPaid())

	// Once fully paid, nothing moves it back or changes the amount.
	after, err := svc.RecordDeposit(ctx, booking.ID, 25000, "CAP-003")
	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, after.Payment.Status)
	assert.Equal(t, int64(100000), after.Payment.PaidAmount)
}

func TestRecordFinalPaymentClampedAtTotal(t *testing.T) {
	svc, fc := newTestService(t)
	ctx := context.Background()

	booking, err := svc.Create(ctx, validRequest(fc.Now()))
	assert.NoError(t, err)

	_, err = svc.RecordDeposit(ctx, booking.ID, 25000, "CAP-001")
	assert.NoError(t, err)

	// An invoice settlement for the full amount overlaps the earlier
	// deposit capture; the recorded amount stops at the total.
	paid, err := svc.RecordFinalPayment(ctx, booking.ID, 100000, "CAP-002")
	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, paid.Payment.Status)
	assert.Equal(t, int64(100000), paid.Payment.PaidAmount)
}

func TestMarkPaymentOverdue(t *testing.T) {
	svc, fc := newTestService(t)
	ctx := context.Background()

	booking, err := svc.Create(ctx, validRequest(fc.Now()))
	assert.NoError(t, err)

	overdue, err := svc.MarkPaymentOverdue(ctx, booking.ID)
	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusOverdue, overdue.Payment.Status)
	assert.Nil(t, overdue.Payment.PaidAt)

	// A settled booking never becomes overdue.
	_, err = svc.RecordFinalPayment(ctx, booking.ID, 100000, "CAP-010")
	assert.NoError(t, err)
	settled, err := svc.MarkPaymentOverdue(ctx, booking.ID)
	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, settled.Payment.Status)
}

func TestListBookingsFilterAndPaging(t *testing.T) {
	svc, fc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		req := validRequest(fc.Now())
		req.Email = fmt.Sprintf("client%d@example.com", i)
		_, err := svc.Create(ctx, req)
		assert.NoError(t, err)
	}

	resp, err := svc.List(ctx, domain.ListBookingRequest{})
	assert.NoError(t, err)
	assert.Len(t, resp.Bookings, 5)

	resp, err = svc.List(ctx, domain.ListBookingRequest{
		Filter: domain.ListBookingFilter{Status: domain.StatusApproved},
	})
	assert.NoError(t, err)
	assert.Empty(t, resp.Bookings)
}

func TestListBookingsCursorWalksAllPages(t *testing.T) {
	svc, fc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		req := validRequest(fc.Now())
		req.Email = fmt.Sprintf("client%d@example.com", i)
		_, err := svc.Create(ctx, req)
		assert.NoError(t, err)
		fc.Advance(time.Minute)
	}

	seen := map[snowflake.ID]bool{}
	token := ""
	for page := 0; page < 3; page++ {
		resp, err := svc.List(ctx, domain.ListBookingRequest{
			Page: pagination.Pagination{PageSize: 1, PageToken: token},
		})
		assert.NoError(t, err)
		assert.Len(t, resp.Bookings, 1)
		assert.False(t, seen[resp.Bookings[0].ID], "page %d repeated a booking", page)
		seen[resp.Bookings[0].ID] = true
		token = resp.NextPageToken
	}
	assert.Len(t, seen, 3)

	// Past the last row the listing is empty.
	resp, err := svc.List(ctx, domain.ListBookingRequest{
		Page: pagination.Pagination{PageSize: 1, PageToken: token},
	})
	assert.NoError(t, err)
	assert.Empty(t, resp.Bookings)
	assert.False(t, resp.HasMore)

	_, err = svc.List(ctx, domain.ListBookingRequest{
		Page: pagination.Pagination{PageSize: 1, PageToken: "not-a-token"},
	})
	assert.ErrorIs(t, err, pagination.ErrInvalidPageToken)
}

func TestSetPaymentReference(t *testing.T) {
	svc, fc := newTestService(t)
	ctx := context.Background()

	booking, err := svc.Create(ctx, validRequest(fc.Now()))
	assert.NoError(t, err)

	linked, err := svc.SetPaymentReference(ctx, booking.ID, " CAP-77 ")
	assert.NoError(t, err)
	assert.Equal(t, "CAP-77", linked.Payment.ProviderPaymentID)

	stored, err := svc.Get(ctx, booking.ID)
	assert.NoError(t, err)
	assert.Equal(t, "CAP-77", stored.Payment.ProviderPaymentID)

	_, err = svc.SetPaymentReference(ctx, booking.ID, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentRef)

	_, err = svc.SetPaymentReference(ctx, booking.ID+1, "CAP-78")
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}
