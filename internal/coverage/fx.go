package coverage

import (
	"github.com/smallbiznis/covercheck/internal/coverage/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("coverage.repository",
	fx.Provide(repository.Provide),
)
