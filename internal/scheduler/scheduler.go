// Package scheduler runs the periodic billing sweeps: overdue invoice
// detection and payment reminders.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingdomain "github.com/guardline/aegis/internal/booking/domain"
	"github.com/guardline/aegis/internal/clock"
	"github.com/guardline/aegis/internal/config"
	invoicedomain "github.com/guardline/aegis/internal/invoice/domain"
	"github.com/guardline/aegis/internal/notification"
	"github.com/guardline/aegis/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Config      Config `optional:"true"`
	Policy      *config.BillingPolicyHolder
	InvoiceRepo invoicedomain.Repository
	InvoiceSvc  invoicedomain.Service
	BookingRepo bookingdomain.Repository
	Dispatcher  notification.Dispatcher
	Locker      *Locker `optional:"true"`
}

type Scheduler struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         Config
	clock       clock.Clock
	policy      *config.BillingPolicyHolder
	invoiceRepo invoicedomain.Repository
	invoiceSvc  invoicedomain.Service
	bookingRepo bookingdomain.Repository
	dispatcher  notification.Dispatcher
	locker      *Locker
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Policy == nil ||
		p.InvoiceRepo == nil || p.InvoiceSvc == nil || p.BookingRepo == nil || p.Dispatcher == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:          p.DB,
		log:         p.Log.Named("scheduler"),
		cfg:         p.Config.withDefaults(),
		clock:       p.Clock,
		policy:      p.Policy,
		invoiceRepo: p.InvoiceRepo,
		invoiceSvc:  p.InvoiceSvc,
		bookingRepo: p.BookingRepo,
		dispatcher:  p.Dispatcher,
		locker:      p.Locker,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	if s.locker != nil {
		key := "aegis:scheduler:" + name
		token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if !ok {
			s.log.Debug("sweep held by another instance", zap.String("job", name))
			return nil
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
				s.log.Warn("lock release failed", zap.String("job", name), zap.Error(err))
			}
		}()
	}

	start := time.Now()
	err := fn(ctx)
	metrics.ObserveSweepDuration(name, time.Since(start))
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("sweep timed out", zap.String("job", name), zap.Error(err))
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	return errors.Join(
		s.runJob(parent, "mark_overdue", s.MarkOverdueJob),
		s.runJob(parent, "payment_reminders", s.PaymentRemindersJob),
	)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// MarkOverdueJob flags sent invoices whose due date plus the grace window
// has passed. Each hit cascades into the booking's payment status.
func (s *Scheduler) MarkOverdueJob(ctx context.Context) error {
	policy := s.policy.Get()
	cutoff := s.clock.Now().AddDate(0, 0, -policy.OverdueGraceDays)

	var jobErr error
	for {
		invoices, err := s.invoiceRepo.ListOverdue(ctx, s.db, cutoff, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(invoices) == 0 {
			return jobErr
		}

		progressed := false
		for _, inv := range invoices {
			if ctx.Err() != nil {
				return errors.Join(jobErr, ctx.Err())
			}
			if _, err := s.invoiceSvc.MarkOverdue(ctx, inv.ID); err != nil {
				jobErr = errors.Join(jobErr, err)
				continue
			}
			progressed = true
			s.log.Info("invoice marked overdue",
				zap.String("invoice_id", inv.ID.String()),
				zap.String("invoice_number", inv.InvoiceNumber),
			)
		}
		if !progressed {
			// Every row in the batch failed; retrying immediately
			// would spin on the same rows.
			return jobErr
		}
	}
}

// PaymentRemindersJob sends one reminder per invoice inside the lead window.
// MarkReminderSent keeps a rerun from notifying twice.
func (s *Scheduler) PaymentRemindersJob(ctx context.Context) error {
	policy := s.policy.Get()
	now := s.clock.Now()
	dueBefore := now.AddDate(0, 0, policy.ReminderLeadDays)

	invoices, err := s.invoiceRepo.ListDueForReminder(ctx, s.db, dueBefore, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	var jobErr error
	for _, inv := range invoices {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		booking, err := s.bookingRepo.FindByID(ctx, s.db, inv.BookingID)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			continue
		}
		if booking == nil {
			s.log.Warn("reminder skipped, booking missing",
				zap.String("invoice_id", inv.ID.String()),
				zap.String("booking_id", inv.BookingID.String()),
			)
			continue
		}

		if !s.dispatcher.Notify(ctx, booking, notification.TriggerPaymentReminder, inv) {
			continue
		}
		if err := s.invoiceRepo.MarkReminderSent(ctx, s.db, inv.ID, now); err != nil {
			jobErr = errors.Join(jobErr, err)
		}
	}
	return jobErr
}
