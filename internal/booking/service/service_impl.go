package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/guardline/aegis/internal/booking/domain"
	"github.com/guardline/aegis/internal/clock"
	"github.com/guardline/aegis/internal/notification"
	"github.com/guardline/aegis/internal/observability/metrics"
	"github.com/guardline/aegis/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Dispatcher notification.Dispatcher
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	dispatcher notification.Dispatcher
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("booking.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		dispatcher: p.Dispatcher,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateBookingRequest) (*domain.Booking, error) {
	now := s.clock.Now()
	if err := validateCreate(req, now); err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = domain.PaymentMethodGateway
	}
	prefs := domain.ContactPrefs{
		EmailEnabled:     true,
		PreferredChannel: domain.ChannelEmail,
	}
	if req.ContactPrefs != nil {
		prefs = *req.ContactPrefs
		if prefs.PreferredChannel == "" {
			prefs.PreferredChannel = domain.ChannelEmail
		}
	}

	booking := &domain.Booking{
		ID:                  s.genID.Generate(),
		ClientName:          strings.TrimSpace(req.ClientName),
		Email:               strings.TrimSpace(req.Email),
		Phone:               strings.TrimSpace(req.Phone),
		EventType:           strings.TrimSpace(req.EventType),
		EventDate:           req.EventDate.UTC(),
		VenueAddress:        strings.TrimSpace(req.VenueAddress),
		GuardCount:          req.GuardCount,
		SpecialRequirements: strings.TrimSpace(req.SpecialRequirements),
		Status:              domain.StatusPending,
		Payment: domain.Payment{
			TotalAmount:   req.TotalAmount,
			DepositAmount: req.DepositAmount,
			Status:        domain.PaymentStatusPending,
			Method:        method,
		},
		ContactPrefs: prefs,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, s.db, booking); err != nil {
		return nil, err
	}

	metrics.IncBookingCreated()
	s.notify(booking, notification.TriggerConfirmation)
	return booking, nil
}

// validateCreate enforces the intake invariants at the persistence layer.
// The HTTP layer performs its own per-field validation first; both checks
// are kept deliberately.
func validateCreate(req domain.CreateBookingRequest, now time.Time) error {
	if strings.TrimSpace(req.Phone) == "" {
		return domain.ErrMissingContactPhone
	}
	if strings.TrimSpace(req.VenueAddress) == "" {
		return domain.ErrMissingVenueAddress
	}
	if req.GuardCount < 1 {
		return domain.ErrInvalidGuardCount
	}
	if req.EventDate.Before(now.Add(domain.MinEventLeadTime)) {
		return domain.ErrEventDateTooSoon
	}
	if req.TotalAmount != 0 || req.DepositAmount != 0 {
		if req.TotalAmount <= 0 {
			return domain.ErrInvalidTotalAmount
		}
		if req.DepositAmount*4 < req.TotalAmount {
			return domain.ErrDepositBelowMinimum
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Booking, error) {
	booking, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domain.ErrBookingNotFound
	}
	return booking, nil
}

func (s *Service) List(ctx context.Context, req domain.ListBookingRequest) (domain.ListBookingResponse, error) {
	page := req.Page
	if page.PageSize <= 0 {
		page.PageSize = 10
	}
	bookings, err := s.repo.List(ctx, s.db, req.Filter, page)
	if err != nil {
		return domain.ListBookingResponse{}, err
	}

	info := pagination.BuildCursorPageInfo(bookings, page.PageSize, func(b *domain.Booking) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        b.ID.String(),
			CreatedAt: b.CreatedAt.Format(time.RFC3339Nano),
		})
		return token
	})
	if len(bookings) > page.PageSize {
		bookings = bookings[:page.PageSize]
	}

	return domain.ListBookingResponse{
		PageInfo: *info,
		Bookings: bookings,
	}, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, status domain.Status, adminNotes string) (*domain.Booking, error) {
	if !domain.ValidStatus(status) {
		return nil, domain.ErrInvalidStatus
	}

	booking, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(booking.Status, status) {
		return nil, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	rows, err := s.repo.UpdateStatus(ctx, s.db, id, status, adminNotes, now)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, domain.ErrBookingNotFound
	}

	booking.Status = status
	booking.AdminNotes = adminNotes
	booking.UpdatedAt = now

	metrics.IncBookingTransition(string(status))
	s.notify(booking, notification.TriggerStatusUpdate)
	return booking, nil
}

func (s *Service) RecordDeposit(ctx context.Context, id snowflake.ID, amount int64, providerPaymentID string) (*domain.Booking, error) {
	return s.recordPayment(ctx, id, amount, providerPaymentID, domain.PaymentStatusDepositPaid)
}

func (s *Service) RecordFinalPayment(ctx context.Context, id snowflake.ID, amount int64, providerPaymentID string) (*domain.Booking, error) {
	return s.recordPayment(ctx, id, amount, providerPaymentID, domain.PaymentStatusPaid)
}

func (s *Service) recordPayment(ctx context.Context, id snowflake.ID, amount int64, providerPaymentID string, status domain.PaymentStatus) (*domain.Booking, error) {
	booking, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Settled is sticky: once fully paid, later captures change nothing.
	// Redelivered webhooks are deduplicated upstream in the event ledger.
	if booking.Payment.Status == domain.PaymentStatusPaid {
		return booking, nil
	}

	// Partial captures accumulate. A final settlement overlapping an earlier
	// capture never pushes the recorded amount past the total.
	paidAmount := booking.Payment.PaidAmount + amount
	if status == domain.PaymentStatusPaid && booking.Payment.TotalAmount > 0 && paidAmount > booking.Payment.TotalAmount {
		paidAmount = booking.Payment.TotalAmount
	}

	now := s.clock.Now()
	update := domain.PaymentUpdate{
		Status:            status,
		PaidAmount:        paidAmount,
		PaidAt:            now,
		ProviderPaymentID: providerPaymentID,
	}
	rows, err := s.repo.UpdatePayment(ctx, s.db, id, update, now)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, domain.ErrBookingNotFound
	}

	booking.Payment.Status = status
	booking.Payment.PaidAmount = paidAmount
	booking.Payment.PaidAt = &now
	if providerPaymentID != "" {
		booking.Payment.ProviderPaymentID = providerPaymentID
	}
	booking.UpdatedAt = now
	return booking, nil
}

// SetPaymentReference links the booking to a provider payment/order id so
// later payment_completed captures can be matched. Used when a checkout is
// opened out of band, before any webhook for it arrives.
func (s *Service) SetPaymentReference(ctx context.Context, id snowflake.ID, providerPaymentID string) (*domain.Booking, error) {
	providerPaymentID = strings.TrimSpace(providerPaymentID)
	if providerPaymentID == "" {
		return nil, domain.ErrInvalidPaymentRef
	}

	booking, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rows, err := s.repo.SetProviderPaymentID(ctx, s.db, id, providerPaymentID, now)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, domain.ErrBookingNotFound
	}

	booking.Payment.ProviderPaymentID = providerPaymentID
	booking.UpdatedAt = now
	return booking, nil
}

func (s *Service) MarkPaymentOverdue(ctx context.Context, id snowflake.ID) (*domain.Booking, error) {
	booking, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch booking.Payment.Status {
	case domain.PaymentStatusPaid, domain.PaymentStatusOverdue:
		return booking, nil
	}

	now := s.clock.Now()
	update := domain.PaymentUpdate{
		Status:     domain.PaymentStatusOverdue,
		PaidAmount: booking.Payment.PaidAmount,
	}
	if booking.Payment.PaidAt != nil {
		update.PaidAt = *booking.Payment.PaidAt
	}
	if _, err := s.repo.UpdatePayment(ctx, s.db, id, update, now); err != nil {
		return nil, err
	}
	booking.Payment.Status = domain.PaymentStatusOverdue
	booking.UpdatedAt = now
	return booking, nil
}

// notify fires a best-effort notification without holding up the caller.
func (s *Service) notify(booking *domain.Booking, trigger notification.Trigger) {
	b := *booking
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if ok := s.dispatcher.Notify(ctx, &b, trigger, nil); !ok {
			s.log.Warn("notification dispatch incomplete",
				zap.String("trigger", string(trigger)),
				zap.String("booking_id", b.ID.String()),
			)
		}
	}()
}
