package service

import (
	"context"

	bookingdomain "github.com/guardline/aegis/internal/booking/domain"
	"github.com/guardline/aegis/internal/clock"
	"github.com/guardline/aegis/internal/config"
	"github.com/guardline/aegis/internal/gateway/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Clock  clock.Clock
	Client domain.Client
	Policy *config.BillingPolicyHolder
}

type Service struct {
	log    *zap.Logger
	clock  clock.Clock
	client domain.Client
	policy *config.BillingPolicyHolder
}

func New(p Params) domain.Service {
	return &Service{
		log:    p.Log.Named("gateway.service"),
		clock:  p.Clock,
		client: p.Client,
		policy: p.Policy,
	}
}

// ValidateDeposit enforces the 25% minimum deposit. Pure, no I/O.
func (s *Service) ValidateDeposit(totalAmount, depositAmount int64) error {
	if totalAmount <= 0 {
		return bookingdomain.ErrInvalidTotalAmount
	}
	if depositAmount < 0 || depositAmount*4 < totalAmount {
		return bookingdomain.ErrDepositBelowMinimum
	}
	return nil
}

// ComputePaymentSchedule derives the deposit/final split. Due dates come
// from the billing policy (deposit +7d, balance +30d by default), anchored
// at the current clock time.
func (s *Service) ComputePaymentSchedule(totalAmount int64, depositFraction float64) (domain.PaymentSchedule, error) {
	if totalAmount <= 0 {
		return domain.PaymentSchedule{}, bookingdomain.ErrInvalidTotalAmount
	}
	if depositFraction <= 0 || depositFraction >= 1 {
		depositFraction = bookingdomain.MinDepositFraction
	}

	policy := config.DefaultBillingPolicy()
	if s.policy != nil {
		policy = s.policy.Get()
	}

	deposit := int64(float64(totalAmount) * depositFraction)
	final := totalAmount - deposit
	now := s.clock.Now()

	return domain.PaymentSchedule{
		TotalAmount:   totalAmount,
		DepositAmount: deposit,
		FinalAmount:   final,
		Schedule: []domain.ScheduleEntry{
			{Type: domain.ScheduleEntryDeposit, Amount: deposit, DueAt: now.AddDate(0, 0, policy.DepositDueDays)},
			{Type: domain.ScheduleEntryFinal, Amount: final, DueAt: now.AddDate(0, 0, policy.FinalDueDays)},
		},
	}, nil
}

// CreateProviderInvoice validates the deposit rule, then asks the provider
// to create an invoice with the deposit as the minimum partial payment.
// Provider failures surface as *GatewayError and leave no local state.
func (s *Service) CreateProviderInvoice(ctx context.Context, params domain.CreateInvoiceParams) (domain.ProviderInvoice, error) {
	if err := s.ValidateDeposit(params.Amount, params.DepositAmount); err != nil {
		return domain.ProviderInvoice{}, err
	}

	invoice, err := s.client.CreateInvoice(ctx, params)
	if err != nil {
		s.log.Warn("provider invoice creation failed",
			zap.String("reference", params.Reference),
			zap.Error(err),
		)
		return domain.ProviderInvoice{}, err
	}
	return invoice, nil
}

func (s *Service) SendProviderInvoice(ctx context.Context, providerInvoiceID string) error {
	if err := s.client.SendInvoice(ctx, providerInvoiceID); err != nil {
		s.log.Warn("provider invoice send failed",
			zap.String("provider_invoice_id", providerInvoiceID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) QueryPaymentStatus(ctx context.Context, paymentID string) (domain.ProviderPayment, error) {
	return s.client.GetPayment(ctx, paymentID)
}
