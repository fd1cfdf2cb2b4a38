package subject

import (
	"github.com/ottimo/presence/internal/subject/repository"
	"github.com/ottimo/presence/internal/subject/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subject.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
