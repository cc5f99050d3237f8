package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/covercheck/internal/clock"
	"github.com/smallbiznis/covercheck/internal/observability/metrics"
	"github.com/smallbiznis/covercheck/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type heldLocker struct{}

func (heldLocker) Lock(context.Context, string) (func(), error) {
	return nil, errors.Join(ratelimit.ErrLockTimeout, context.DeadlineExceeded)
}

func newTestScheduler(t *testing.T, locker ratelimit.Locker) (*Scheduler, *prometheus.Registry) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	require.NoError(t, err)

	return &Scheduler{
		log:     zap.NewNop(),
		cfg:     DefaultConfig(),
		genID:   node,
		clock:   clock.NewFakeClock(time.Time{}),
		locker:  locker,
		metrics: m,
	}, registry
}

func TestRunJobTimeoutDoesNotReturnError(t *testing.T) {
	s, registry := newTestScheduler(t, ratelimit.NewKeyedMutex())

	err := s.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, getCounterValue(t, registry, "covercheck_scheduler_job_runs_total", map[string]string{
		"job":     "timeout_job",
		"outcome": metrics.OutcomeTimeout,
	}))
}

func TestRunJobWrapsFailures(t *testing.T) {
	s, registry := newTestScheduler(t, ratelimit.NewKeyedMutex())
	boom := errors.New("boom")

	err := s.runJob(context.Background(), "failing_job", time.Second, func(context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing_job")
	assert.Equal(t, 1.0, getCounterValue(t, registry, "covercheck_scheduler_job_runs_total", map[string]string{
		"job":     "failing_job",
		"outcome": metrics.OutcomeFailure,
	}))
}

func TestRunJobSkipsWhenLockHeld(t *testing.T) {
	s, registry := newTestScheduler(t, heldLocker{})

	called := false
	err := s.runJob(context.Background(), "locked_job", time.Second, func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, 1.0, getCounterValue(t, registry, "covercheck_scheduler_job_runs_total", map[string]string{
		"job":     "locked_job",
		"outcome": metrics.OutcomeSkipped,
	}))
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{BatchSize: 5}.withDefaults()
	assert.Equal(t, 5, cfg.BatchSize)
	assert.Equal(t, time.Hour, cfg.RunInterval)
	assert.Equal(t, 10*time.Minute, cfg.RunTimeout)
	assert.Equal(t, 15*time.Minute, cfg.RecoveryThreshold)
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if matchLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.GetLabel()) != len(labels) {
		return false
	}
	for _, pair := range metric.GetLabel() {
		if labels[pair.GetName()] != pair.GetValue() {
			return false
		}
	}
	return true
}
