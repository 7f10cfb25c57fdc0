package sms

import (
	"github.com/guardline/aegis/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewProvider selects the HTTP gateway when configured, a no-op sender otherwise.
func NewProvider(cfg config.Config, log *zap.Logger) Provider {
	if cfg.SMS.APIURL == "" {
		log.Warn("sms gateway not configured, sms delivery disabled")
		return &NoOpProvider{}
	}
	return NewHTTP(Config{
		APIURL: cfg.SMS.APIURL,
		APIKey: cfg.SMS.APIKey,
		Sender: cfg.SMS.Sender,
	})
}

var Module = fx.Module("providers.sms",
	fx.Provide(NewProvider),
)
