package organization

import (
	"github.com/ottimo/presence/internal/organization/repository"
	"github.com/ottimo/presence/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
