package auth

import (
	"github.com/guardline/aegis/internal/auth/repository"
	"github.com/guardline/aegis/internal/auth/service"
	"github.com/guardline/aegis/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth",
	fx.Provide(repository.New),
	fx.Provide(service.New),
	fx.Provide(session.NewManager),
)
