package invoice

import (
	"github.com/guardline/aegis/internal/invoice/repository"
	"github.com/guardline/aegis/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
