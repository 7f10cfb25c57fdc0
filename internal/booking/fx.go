package booking

import (
	"github.com/guardline/aegis/internal/booking/repository"
	"github.com/guardline/aegis/internal/booking/service"
	"go.uber.org/fx"
)

var Module = fx.Module("booking.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
