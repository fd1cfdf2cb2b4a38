package attendance

import (
	"github.com/ottimo/presence/internal/attendance/repository"
	"github.com/ottimo/presence/internal/attendance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("attendance.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
