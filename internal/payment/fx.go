package payment

import (
	"github.com/guardline/aegis/internal/clock"
	"github.com/guardline/aegis/internal/config"
	"github.com/guardline/aegis/internal/payment/domain"
	"github.com/guardline/aegis/internal/payment/repository"
	"github.com/guardline/aegis/internal/payment/service"
	"github.com/guardline/aegis/internal/payment/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(cfg config.Config, log *zap.Logger, clk clock.Clock, svc *service.Service) domain.Service {
		return webhook.New(cfg, log, clk, svc)
	}),
)
