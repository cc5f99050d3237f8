package extraction

import (
	"github.com/smallbiznis/covercheck/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("extraction",
	fx.Provide(NewGateway),
)

// NewGateway selects the provider named in config. "none" or a missing API
// key yields the UnavailableGateway.
func NewGateway(cfg config.Config, log *zap.Logger) (Gateway, error) {
	switch cfg.Extraction.Provider {
	case "none", "":
		log.Warn("document extraction disabled")
		return UnavailableGateway{}, nil
	case "anthropic":
		if cfg.Extraction.APIKey == "" {
			log.Warn("ANTHROPIC_API_KEY not set, document extraction disabled")
			return UnavailableGateway{}, nil
		}
		return NewAnthropicGateway(cfg.Extraction, log)
	default:
		log.Warn("unknown extraction provider, document extraction disabled",
			zap.String("provider", cfg.Extraction.Provider))
		return UnavailableGateway{}, nil
	}
}
