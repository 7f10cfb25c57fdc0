package email

import (
	"github.com/guardline/aegis/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewProvider selects SMTP when configured, a no-op sender otherwise.
func NewProvider(cfg config.Config, log *zap.Logger) Provider {
	if cfg.SMTP.Host == "" {
		log.Warn("smtp not configured, email delivery disabled")
		return &NoOpProvider{}
	}
	return NewSMTP(Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}

var Module = fx.Module("providers.email",
	fx.Provide(NewProvider),
)
