package certificate

import (
	"github.com/smallbiznis/covercheck/internal/certificate/repository"
	"github.com/smallbiznis/covercheck/internal/certificate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("certificate.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
