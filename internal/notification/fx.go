package notification

import (
	"github.com/guardline/aegis/internal/providers/email"
	"github.com/guardline/aegis/internal/providers/sms"
	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	email.Module,
	sms.Module,
	fx.Provide(NewDispatcher),
)
