package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/guardline/aegis/internal/booking/domain"
	"github.com/guardline/aegis/internal/clock"
	invoicedomain "github.com/guardline/aegis/internal/invoice/domain"
	"github.com/guardline/aegis/internal/observability/metrics"
	"github.com/guardline/aegis/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	BookingRepo bookingdomain.Repository
	BookingSvc  bookingdomain.Service
	InvoiceRepo invoicedomain.Repository
	InvoiceSvc  invoicedomain.Service
}

// Service applies verified provider events to local booking/invoice state.
// It is the only path that marks money as actually received.
type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	bookingRepo bookingdomain.Repository
	bookingSvc  bookingdomain.Service
	invoiceRepo invoicedomain.Repository
	invoiceSvc  invoicedomain.Service
}

func NewService(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		bookingRepo: p.BookingRepo,
		bookingSvc:  p.BookingSvc,
		invoiceRepo: p.InvoiceRepo,
		invoiceSvc:  p.InvoiceSvc,
	}
}

// ProcessEvent records the event in the ledger, applies it at most once,
// and marks it processed. Redelivered events short-circuit on the ledger.
func (s *Service) ProcessEvent(ctx context.Context, event *domain.WebhookEvent) (domain.Outcome, error) {
	if err := validateEvent(event); err != nil {
		return "", err
	}
	if !json.Valid(event.RawPayload) {
		return "", domain.ErrInvalidPayload
	}

	now := s.clock.Now()
	record := &domain.EventRecord{
		ID:              s.genID.Generate(),
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		ResourceID:      event.ResourceID,
		Payload:         datatypes.JSON(event.RawPayload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, record)
	if err != nil {
		return "", err
	}
	stored := record
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.ProviderEventID)
		if err != nil {
			return "", err
		}
		if stored == nil {
			return "", domain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			s.log.Info("duplicate provider event ignored",
				zap.String("provider_event_id", event.ProviderEventID),
			)
			return domain.OutcomeDuplicate, nil
		}
	}

	outcome, err := s.applyEvent(ctx, event)
	if err != nil {
		return "", err
	}

	if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, now, outcome); err != nil {
		return "", err
	}
	metrics.IncPaymentEvent(string(outcome))
	return outcome, nil
}

func validateEvent(event *domain.WebhookEvent) error {
	if event == nil {
		return domain.ErrInvalidEvent
	}
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	if event.ProviderEventID == "" {
		return domain.ErrInvalidEvent
	}
	event.Type = strings.TrimSpace(event.Type)
	if event.Type == "" {
		return domain.ErrInvalidEvent
	}
	return nil
}

func (s *Service) applyEvent(ctx context.Context, event *domain.WebhookEvent) (domain.Outcome, error) {
	switch event.Type {
	case domain.EventTypePaymentCompleted:
		return s.applyPaymentCompleted(ctx, event)
	case domain.EventTypeInvoicePaid:
		return s.applyInvoicePaid(ctx, event)
	default:
		// The provider sends event types we do not act on. Recorded and
		// acknowledged so delivery is not retried.
		s.log.Info("unrecognized provider event type",
			zap.String("provider_event_id", event.ProviderEventID),
			zap.String("event_type", event.Type),
		)
		return domain.OutcomeUnknown, nil
	}
}

// applyPaymentCompleted settles a one-off capture against the booking whose
// payment correlation id matches. An unmatched payment id is a no-op: the
// capture may belong to an unrelated payment.
func (s *Service) applyPaymentCompleted(ctx context.Context, event *domain.WebhookEvent) (domain.Outcome, error) {
	booking, err := s.bookingRepo.FindByProviderPaymentID(ctx, s.db, event.ResourceID)
	if err != nil {
		return "", err
	}
	if booking == nil {
		s.log.Info("payment event matched no booking",
			zap.String("provider_event_id", event.ProviderEventID),
			zap.String("payment_id", event.ResourceID),
		)
		return domain.OutcomeNoMatch, nil
	}

	// Classification is cumulative: a capture that brings the total received
	// up to the booking amount settles it, anything short of that is a
	// deposit/partial payment. The provider invoice allows partial payment,
	// so the balance usually arrives as a second capture.
	if booking.Payment.TotalAmount > 0 && booking.Payment.PaidAmount+event.Amount < booking.Payment.TotalAmount {
		_, err = s.bookingSvc.RecordDeposit(ctx, booking.ID, event.Amount, event.ResourceID)
	} else {
		_, err = s.bookingSvc.RecordFinalPayment(ctx, booking.ID, event.Amount, event.ResourceID)
	}
	if err != nil {
		return "", err
	}
	return domain.OutcomeApplied, nil
}

// applyInvoicePaid marks the matching invoice paid; the invoice service
// cascades into the owning booking. A webhook arriving before the local
// invoice exists is a no-op; the ledger keeps the payload for later
// reconciliation.
func (s *Service) applyInvoicePaid(ctx context.Context, event *domain.WebhookEvent) (domain.Outcome, error) {
	invoice, err := s.invoiceRepo.FindByProviderInvoiceID(ctx, s.db, event.ResourceID)
	if err != nil {
		return "", err
	}
	if invoice == nil {
		s.log.Info("invoice event matched no invoice",
			zap.String("provider_event_id", event.ProviderEventID),
			zap.String("provider_invoice_id", event.ResourceID),
		)
		return domain.OutcomeNoMatch, nil
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.clock.Now()
	}
	if _, err := s.invoiceSvc.MarkPaid(ctx, invoice.ID, "", occurredAt); err != nil {
		return "", err
	}
	return domain.OutcomeApplied, nil
}
