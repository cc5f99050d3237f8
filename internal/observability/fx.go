package observability

import (
	"github.com/smallbiznis/covercheck/internal/observability/logger"
	"github.com/smallbiznis/covercheck/internal/observability/metrics"
	"github.com/smallbiznis/covercheck/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the zap logger, the tracer provider, the /metrics registry
// and the domain metrics recorded on it.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		func(cfg Config) logger.Config {
			return logger.Config{
				ServiceName:         cfg.ServiceName,
				Environment:         cfg.Environment,
				Version:             cfg.Version,
				Level:               cfg.Telemetry.LogLevel,
				Format:              cfg.Telemetry.LogFormat,
				IncludeCaller:       true,
				IncludeStackOnError: cfg.Debug(),
			}
		},
		logger.New,
		func(cfg Config) tracing.Config {
			return tracing.Config{
				Enabled:          cfg.Telemetry.TraceEnabled,
				ServiceName:      cfg.ServiceName,
				ServiceVersion:   cfg.Version,
				Environment:      cfg.Environment,
				ExporterEndpoint: cfg.Telemetry.OTLPEndpoint,
				ExporterProtocol: cfg.Telemetry.OTLPProtocol,
				SamplingRatio:    cfg.Telemetry.SamplingRatio,
			}
		},
		tracing.NewProvider,
		metrics.NewRegistry,
		metrics.New,
	),
	// The provider registers itself globally; nothing else depends on it.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
