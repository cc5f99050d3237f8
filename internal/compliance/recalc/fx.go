package recalc

import (
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("recalc.service",
	fx.Provide(NewService),
	fx.Provide(func(s *Service) coveragedomain.Recalculator { return s }),
)
