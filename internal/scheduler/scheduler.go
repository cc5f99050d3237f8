// Package scheduler runs the periodic compliance jobs: the expiration sweep
// that moves entities into expiring_soon and expired without re-extraction,
// and the recovery sweep for certificates stuck in processing.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/covercheck/internal/audit/domain"
	certificatedomain "github.com/smallbiznis/covercheck/internal/certificate/domain"
	"github.com/smallbiznis/covercheck/internal/clock"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
	entitydomain "github.com/smallbiznis/covercheck/internal/entity/domain"
	"github.com/smallbiznis/covercheck/internal/observability/metrics"
	"github.com/smallbiznis/covercheck/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	JobExpirationSweep = "expiration_sweep"
	JobRecoverySweep   = "recovery_sweep"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

// StatusRefresher re-projects an entity's stored results at now.
type StatusRefresher interface {
	RefreshStatus(ctx context.Context, orgID, entityID snowflake.ID, now time.Time) (coveragedomain.EntityOutcome, error)
}

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	EntityRepo      entitydomain.Repository
	CertificateRepo certificatedomain.Repository
	Refresher       StatusRefresher
	Locker          ratelimit.Locker
	AuditSvc        auditdomain.Service
	Metrics         *metrics.Metrics `optional:"true"`
	Config          Config           `optional:"true"`
}

type Scheduler struct {
	db              *gorm.DB
	log             *zap.Logger
	cfg             Config
	genID           *snowflake.Node
	clock           clock.Clock
	entityRepo      entitydomain.Repository
	certificateRepo certificatedomain.Repository
	refresher       StatusRefresher
	locker          ratelimit.Locker
	auditSvc        auditdomain.Service
	metrics         *metrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.EntityRepo == nil ||
		p.CertificateRepo == nil || p.Refresher == nil || p.Locker == nil || p.AuditSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:              p.DB,
		log:             p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:             p.Config.withDefaults(),
		genID:           p.GenID,
		clock:           p.Clock,
		entityRepo:      p.EntityRepo,
		certificateRepo: p.CertificateRepo,
		refresher:       p.Refresher,
		locker:          p.Locker,
		auditSvc:        p.AuditSvc,
		metrics:         p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, s.cfg.BatchSize)
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)

	ran, err := s.withJobLock(ctx, name, func(ctx context.Context) error {
		if owner {
			s.logJobStart(ctx, run)
		}
		return fn(ctx)
	})
	elapsed := time.Since(start)
	if !ran && err == nil {
		s.metrics.RecordJob(name, metrics.OutcomeSkipped, elapsed)
		log.Debug("job skipped, lock held elsewhere")
		return nil
	}
	if owner && ran {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		s.metrics.RecordJob(name, metrics.OutcomeSuccess, elapsed)
		return nil
	}

	// A deadline is a soft timeout: the next run resumes from scratch.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.RecordJob(name, metrics.OutcomeTimeout, elapsed)
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	s.metrics.RecordJob(name, metrics.OutcomeFailure, elapsed)
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	return errors.Join(
		s.runJob(parent, JobRecoverySweep, s.cfg.RunTimeout, s.RecoverySweepJob),
		s.runJob(parent, JobExpirationSweep, s.cfg.RunTimeout, s.ExpirationSweepJob),
	)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ExpirationSweepJob walks every entity with a confirmed certificate in id
// order and refreshes its status at a single instant. One entity failing is
// logged and does not stop the walk.
func (s *Scheduler) ExpirationSweepJob(ctx context.Context) error {
	_, run, _ := s.ensureJobRun(ctx, JobExpirationSweep, s.cfg.BatchSize)
	now := s.clock.Now().UTC()

	var (
		afterID snowflake.ID
		failed  int
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		entities, err := s.entityRepo.ListForSweep(ctx, s.db, afterID, s.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("list entities for sweep: %w", err)
		}
		if len(entities) == 0 {
			break
		}

		for _, entity := range entities {
			outcome, err := s.refresher.RefreshStatus(ctx, entity.OrgID, entity.ID, now)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failed++
				s.logItemError(ctx, run, "expiration sweep entity failed", entity.OrgID, entity.ID, err)
				continue
			}
			run.AddProcessed(1)
			if outcome.Changed {
				run.AddChanged()
			}
		}

		afterID = entities[len(entities)-1].ID
		if len(entities) < s.cfg.BatchSize {
			break
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d entities failed to refresh", failed)
	}
	return nil
}
