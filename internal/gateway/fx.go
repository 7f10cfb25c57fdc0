package gateway

import (
	"github.com/guardline/aegis/internal/config"
	"github.com/guardline/aegis/internal/gateway/domain"
	"github.com/guardline/aegis/internal/gateway/provider"
	"github.com/guardline/aegis/internal/gateway/service"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway.service",
	fx.Provide(func(cfg config.Config) domain.Client {
		return provider.NewClient(cfg.Gateway)
	}),
	fx.Provide(service.New),
)
