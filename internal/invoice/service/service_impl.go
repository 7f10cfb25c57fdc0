package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/guardline/aegis/internal/booking/domain"
	"github.com/guardline/aegis/internal/clock"
	"github.com/guardline/aegis/internal/config"
	gatewaydomain "github.com/guardline/aegis/internal/gateway/domain"
	"github.com/guardline/aegis/internal/invoice/domain"
	"github.com/guardline/aegis/internal/invoice/format"
	"github.com/guardline/aegis/internal/notification"
	"github.com/guardline/aegis/internal/observability/metrics"
	pkgdb "github.com/guardline/aegis/pkg/db"
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
	BookingSvc bookingdomain.Service
	GatewaySvc gatewaydomain.Service
	Dispatcher notification.Dispatcher
	Policy     *config.BillingPolicyHolder
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	bookingSvc bookingdomain.Service
	gatewaySvc gatewaydomain.Service
	dispatcher notification.Dispatcher
	policy     *config.BillingPolicyHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("invoice.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		bookingSvc: p.BookingSvc,
		gatewaySvc: p.GatewaySvc,
		dispatcher: p.Dispatcher,
		policy:     p.Policy,
	}
}

// Create turns an approved booking into a billable document. Order matters:
// validate, then create the provider invoice, and only persist locally once
// the provider has confirmed. A gateway failure leaves no local record.
func (s *Service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (*domain.Invoice, error) {
	if err := s.gatewaySvc.ValidateDeposit(req.TotalAmount, req.DepositAmount); err != nil {
		return nil, err
	}

	booking, err := s.bookingSvc.Get(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != bookingdomain.StatusApproved {
		return nil, domain.ErrBookingNotApproved
	}

	now := s.clock.Now()
	dueAt := req.DueAt
	if dueAt.IsZero() {
		policy := config.DefaultBillingPolicy()
		if s.policy != nil {
			policy = s.policy.Get()
		}
		dueAt = now.AddDate(0, 0, policy.DepositDueDays)
	}

	// The sequence is allocated in its own transaction before the provider
	// call so the provider sees the final invoice number. A provider failure
	// burns the number; numbers are never reused.
	var seq int64
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		seq, txErr = s.repo.NextSequence(ctx, tx)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	number, err := format.FormatInvoiceNumber(format.DefaultInvoiceNumberTemplate, now, seq)
	if err != nil {
		return nil, err
	}

	description := req.ServiceType
	if description == "" {
		description = booking.EventType
	}
	providerInvoice, err := s.gatewaySvc.CreateProviderInvoice(ctx, gatewaydomain.CreateInvoiceParams{
		Reference:     number,
		ClientName:    booking.ClientName,
		ClientEmail:   booking.Email,
		Description:   description,
		Amount:        req.TotalAmount,
		DepositAmount: req.DepositAmount,
		DueAt:         dueAt,
	})
	if err != nil {
		return nil, err
	}

	invoice := &domain.Invoice{
		ID:                s.genID.Generate(),
		InvoiceNumber:     number,
		BookingID:         booking.ID,
		ProviderInvoiceID: providerInvoice.ID,
		Amount:            req.TotalAmount,
		DepositAmount:     req.DepositAmount,
		Status:            domain.InvoiceStatusDraft,
		DueAt:             dueAt,
		Method:            bookingdomain.PaymentMethodGateway,
		Notes:             req.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Insert(ctx, s.db, invoice); err != nil {
		// A duplicate key here is either the provider ref (already linked to
		// another invoice) or the invoice number (sequence corruption). Only
		// the former maps to a caller-visible conflict.
		if pkgdb.IsDuplicateKeyErr(err) {
			if existing, findErr := s.repo.FindByProviderInvoiceID(ctx, s.db, providerInvoice.ID); findErr == nil && existing != nil {
				return nil, domain.ErrDuplicateProviderRef
			}
		}
		return nil, err
	}

	metrics.IncInvoiceCreated()
	s.notify(booking, invoice, notification.TriggerInvoice)
	return invoice, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *Service) GetByProviderInvoiceID(ctx context.Context, providerInvoiceID string) (*domain.Invoice, error) {
	invoice, err := s.repo.FindByProviderInvoiceID(ctx, s.db, providerInvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *Service) List(ctx context.Context, req domain.ListInvoiceRequest) (domain.ListInvoiceResponse, error) {
	page := req.Page
	if page.PageSize <= 0 {
		page.PageSize = 10
	}
	invoices, err := s.repo.List(ctx, s.db, req.Filter, page)
	if err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	info := pagination.BuildCursorPageInfo(invoices, page.PageSize, func(inv *domain.Invoice) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        inv.ID.String(),
			CreatedAt: inv.CreatedAt.Format(time.RFC3339Nano),
		})
		return token
	})
	if len(invoices) > page.PageSize {
		invoices = invoices[:page.PageSize]
	}

	return domain.ListInvoiceResponse{
		PageInfo: *info,
		Invoices: invoices,
	}, nil
}

// Send triggers provider delivery. The local record only advances to sent
// after the provider accepts the send.
func (s *Service) Send(ctx context.Context, id snowflake.ID) (*domain.Invoice, error) {
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == domain.InvoiceStatusSent {
		return invoice, nil
	}
	if !domain.CanTransition(invoice.Status, domain.InvoiceStatusSent) {
		return nil, domain.ErrInvalidTransition
	}

	if err := s.gatewaySvc.SendProviderInvoice(ctx, invoice.ProviderInvoiceID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if _, err := s.repo.UpdateStatus(ctx, s.db, id, domain.InvoiceStatusSent, nil, "", now); err != nil {
		return nil, err
	}
	invoice.Status = domain.InvoiceStatusSent
	invoice.UpdatedAt = now
	return invoice, nil
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID) (*domain.Invoice, error) {
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == domain.InvoiceStatusCancelled {
		return invoice, nil
	}
	if !domain.CanTransition(invoice.Status, domain.InvoiceStatusCancelled) {
		return nil, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	if _, err := s.repo.UpdateStatus(ctx, s.db, id, domain.InvoiceStatusCancelled, nil, "", now); err != nil {
		return nil, err
	}
	invoice.Status = domain.InvoiceStatusCancelled
	invoice.UpdatedAt = now
	return invoice, nil
}

// MarkPaid settles the invoice and cascades into the owning booking's
// payment sub-record. Settling an already-paid invoice is a no-op so webhook
// redelivery cannot double-count.
func (s *Service) MarkPaid(ctx context.Context, id snowflake.ID, providerPaymentID string, paidAt time.Time) (*domain.Invoice, error) {
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == domain.InvoiceStatusPaid {
		return invoice, nil
	}
	if invoice.Status == domain.InvoiceStatusCancelled {
		return nil, domain.ErrInvalidTransition
	}

	if paidAt.IsZero() {
		paidAt = s.clock.Now()
	}
	now := s.clock.Now()
	if _, err := s.repo.UpdateStatus(ctx, s.db, id, domain.InvoiceStatusPaid, &paidAt, providerPaymentID, now); err != nil {
		return nil, err
	}
	invoice.Status = domain.InvoiceStatusPaid
	invoice.PaidAt = &paidAt
	if providerPaymentID != "" {
		invoice.ProviderPaymentID = providerPaymentID
	}
	invoice.UpdatedAt = now

	s.cascadePaid(ctx, invoice, providerPaymentID)
	return invoice, nil
}

// cascadePaid keeps the booking payment sub-record consistent with a paid
// invoice. The cascade is explicit; there is no persistence-layer hook.
func (s *Service) cascadePaid(ctx context.Context, invoice *domain.Invoice, providerPaymentID string) {
	if _, err := s.bookingSvc.RecordFinalPayment(ctx, invoice.BookingID, invoice.Amount, providerPaymentID); err != nil {
		if errors.Is(err, bookingdomain.ErrBookingNotFound) {
			s.log.Warn("paid invoice has no owning booking",
				zap.String("invoice_id", invoice.ID.String()),
				zap.String("booking_id", invoice.BookingID.String()),
			)
			return
		}
		s.log.Error("booking payment cascade failed",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) MarkOverdue(ctx context.Context, id snowflake.ID) (*domain.Invoice, error) {
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == domain.InvoiceStatusOverdue {
		return invoice, nil
	}
	if !domain.CanTransition(invoice.Status, domain.InvoiceStatusOverdue) {
		return nil, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	if _, err := s.repo.UpdateStatus(ctx, s.db, id, domain.InvoiceStatusOverdue, nil, "", now); err != nil {
		return nil, err
	}
	invoice.Status = domain.InvoiceStatusOverdue
	invoice.UpdatedAt = now

	if _, err := s.bookingSvc.MarkPaymentOverdue(ctx, invoice.BookingID); err != nil && !errors.Is(err, bookingdomain.ErrBookingNotFound) {
		s.log.Warn("booking overdue cascade failed",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
	}
	return invoice, nil
}

func (s *Service) notify(booking *bookingdomain.Booking, invoice *domain.Invoice, trigger notification.Trigger) {
	b := *booking
	inv := *invoice
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if ok := s.dispatcher.Notify(ctx, &b, trigger, &inv); !ok {
			s.log.Warn("notification dispatch incomplete",
				zap.String("trigger", string(trigger)),
				zap.String("invoice_id", inv.ID.String()),
			)
		}
	}()
}
