// Package recalc re-applies the comparator to persisted certificates and
// rewrites the cached entity compliance status.
package recalc

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/covercheck/internal/apperror"
	auditdomain "github.com/smallbiznis/covercheck/internal/audit/domain"
	certificatedomain "github.com/smallbiznis/covercheck/internal/certificate/domain"
	"github.com/smallbiznis/covercheck/internal/clock"
	"github.com/smallbiznis/covercheck/internal/compliance/comparator"
	"github.com/smallbiznis/covercheck/internal/compliance/status"
	"github.com/smallbiznis/covercheck/internal/config"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
	entitydomain "github.com/smallbiznis/covercheck/internal/entity/domain"
	"github.com/smallbiznis/covercheck/internal/observability/metrics"
	"github.com/smallbiznis/covercheck/internal/ratelimit"
	"github.com/smallbiznis/covercheck/internal/retry"
	"github.com/smallbiznis/covercheck/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	ReasonTemplateUpdated = "template_updated"
	ReasonExpirationSweep = "expiration_sweep"
	defaultConcurrency    = 4
	defaultLockWait       = 10 * time.Second
)

var (
	ErrInvalidOrganization = apperror.Validation("invalid_organization", "org_id", "organization is required")
	ErrEntityNotFound      = apperror.NotFound("entity_not_found", "entity not found")
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   config.Config
	Policy   *config.PolicyHolder
	Locker   ratelimit.Locker
	Metrics  *metrics.Metrics `optional:"true"`
	AuditSvc auditdomain.Service

	EntityRepo      entitydomain.Repository
	CertificateRepo certificatedomain.Repository
	CoverageRepo    coveragedomain.Repository
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	policy  *config.PolicyHolder
	locker  ratelimit.Locker
	metrics *metrics.Metrics

	auditSvc auditdomain.Service

	entityRepo      entitydomain.Repository
	certificateRepo certificatedomain.Repository
	coverageRepo    coveragedomain.Repository

	concurrency int
	lockWait    time.Duration
}

func NewService(p Params) *Service {
	concurrency := p.Config.Compliance.RecalcConcurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	lockWait := p.Config.Compliance.LockWait
	if lockWait <= 0 {
		lockWait = defaultLockWait
	}
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("recalc.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		policy:          p.Policy,
		locker:          p.Locker,
		metrics:         p.Metrics,
		auditSvc:        p.AuditSvc,
		entityRepo:      p.EntityRepo,
		certificateRepo: p.CertificateRepo,
		coverageRepo:    p.CoverageRepo,
		concurrency:     concurrency,
		lockWait:        lockWait,
	}
}

// job describes one per-entity recalculation. requirements, when set, are
// the committed rows of templateID and are reused for entities still bound
// to that template.
type job struct {
	orgID        snowflake.ID
	actorID      string
	entityID     snowflake.ID
	reason       string
	trigger      string
	templateID   snowflake.ID
	requirements []coveragedomain.CoverageRequirement
}

// RecalculateTemplate re-runs the comparator for every live entity of the
// org bound to the template. Call it only after the requirement change has
// committed. Entity failures are collected in the summary.
func (s *Service) RecalculateTemplate(ctx context.Context, req coveragedomain.RecalculateTemplateRequest) (coveragedomain.Summary, error) {
	if req.OrgID == 0 {
		return coveragedomain.Summary{}, ErrInvalidOrganization
	}

	started := s.clock.Now()
	defer func() {
		s.metrics.ObserveCascade(metrics.TriggerTemplate, s.clock.Now().Sub(started))
	}()

	requirements, err := s.coverageRepo.ListRequirements(ctx, s.db, req.TemplateID)
	if err != nil {
		return coveragedomain.Summary{}, fmt.Errorf("load requirements: %w", err)
	}
	entityIDs, err := s.entityRepo.ListIDsByTemplate(ctx, s.db, req.OrgID, req.TemplateID)
	if err != nil {
		return coveragedomain.Summary{}, fmt.Errorf("list entities: %w", err)
	}

	summary := coveragedomain.Summary{
		TemplateID: req.TemplateID,
		Total:      len(entityIDs),
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, entityID := range entityIDs {
		g.Go(func() error {
			outcome, err := s.recalculate(ctx, job{
				orgID:        req.OrgID,
				actorID:      req.ActorID,
				entityID:     entityID,
				reason:       ReasonTemplateUpdated,
				trigger:      metrics.TriggerTemplate,
				templateID:   req.TemplateID,
				requirements: requirements,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warn("entity recalculation failed",
					zap.String("template_id", req.TemplateID.String()),
					zap.String("entity_id", entityID.String()),
					zap.Error(err),
				)
				summary.Failed++
				summary.Failures = append(summary.Failures, coveragedomain.EntityFailure{
					EntityID: entityID,
					Error:    err.Error(),
				})
				return nil
			}
			summary.Processed++
			if outcome.Changed {
				summary.Changed++
			}
			if outcome.Status == coveragedomain.StatusPending {
				summary.Pending++
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(summary.Failures, func(a, b coveragedomain.EntityFailure) int {
		return cmp.Compare(a.EntityID, b.EntityID)
	})

	s.log.Info("template cascade finished",
		zap.String("template_id", req.TemplateID.String()),
		zap.Int("total", summary.Total),
		zap.Int("changed", summary.Changed),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// RecalculateEntity re-runs the comparator for one entity against its
// current certificate and template.
func (s *Service) RecalculateEntity(ctx context.Context, req coveragedomain.RecalculateEntityRequest) (coveragedomain.EntityOutcome, error) {
	if req.OrgID == 0 {
		return coveragedomain.EntityOutcome{}, ErrInvalidOrganization
	}
	return s.recalculate(ctx, job{
		orgID:    req.OrgID,
		actorID:  req.ActorID,
		entityID: req.EntityID,
		reason:   req.Reason,
		trigger:  triggerFor(req.Reason),
	})
}

// RefreshStatus re-projects the entity status at now from the persisted
// coverages of the current certificate. Extraction never re-runs.
func (s *Service) RefreshStatus(ctx context.Context, orgID, entityID snowflake.ID, now time.Time) (coveragedomain.EntityOutcome, error) {
	var outcome coveragedomain.EntityOutcome
	err := s.withEntityLock(ctx, entityID, func() error {
		return s.inTx(ctx, func(tx *gorm.DB) error {
			outcome = coveragedomain.EntityOutcome{EntityID: entityID}

			entity, err := s.entityRepo.FindByID(ctx, tx, orgID, entityID)
			if err != nil {
				return err
			}
			if entity == nil {
				return ErrEntityNotFound
			}
			outcome.Previous = entity.ComplianceStatus

			next, certID, results, err := s.projectStored(ctx, tx, entity, now)
			if err != nil {
				return err
			}
			outcome.CertificateID = certID
			outcome.Results = results
			return s.apply(ctx, tx, entity.OrgID, &outcome, next, now)
		})
	})

	s.finish(ctx, job{
		orgID:    orgID,
		entityID: entityID,
		reason:   ReasonExpirationSweep,
		trigger:  metrics.TriggerSweep,
	}, outcome, err)
	return outcome, err
}

func (s *Service) recalculate(ctx context.Context, j job) (coveragedomain.EntityOutcome, error) {
	var outcome coveragedomain.EntityOutcome
	err := s.withEntityLock(ctx, j.entityID, func() error {
		return s.inTx(ctx, func(tx *gorm.DB) error {
			outcome = coveragedomain.EntityOutcome{EntityID: j.entityID}
			now := s.clock.Now().UTC()

			entity, err := s.entityRepo.FindByID(ctx, tx, j.orgID, j.entityID)
			if err != nil {
				return err
			}
			if entity == nil {
				return ErrEntityNotFound
			}
			outcome.Previous = entity.ComplianceStatus

			cert, err := s.certificateRepo.FindCurrent(ctx, tx, entity.ID)
			if err != nil {
				return err
			}
			if cert == nil {
				return s.apply(ctx, tx, entity.OrgID, &outcome, coveragedomain.StatusPending, now)
			}
			certID := cert.ID
			outcome.CertificateID = &certID

			if entity.TemplateID == nil {
				// Without a template nothing can be evaluated; stale results of
				// a previous template are dropped.
				if err := s.coverageRepo.ReplaceResults(ctx, tx, cert.ID, nil); err != nil {
					return err
				}
				return s.apply(ctx, tx, entity.OrgID, &outcome, coveragedomain.StatusPending, now)
			}

			requirements := j.requirements
			if j.templateID == 0 || *entity.TemplateID != j.templateID {
				requirements, err = s.coverageRepo.ListRequirements(ctx, tx, *entity.TemplateID)
				if err != nil {
					return err
				}
			}

			coverages, err := s.coverageRepo.ListCoverages(ctx, tx, cert.ID)
			if err != nil {
				return err
			}

			compared := comparator.Compare(cert.ID, requirements, coverages)
			for i := range compared.Results {
				compared.Results[i].ID = s.genID.Generate()
				compared.Results[i].CreatedAt = now
			}
			if err := s.coverageRepo.ReplaceResults(ctx, tx, cert.ID, compared.Results); err != nil {
				return err
			}
			outcome.Results = len(compared.Results)

			next := status.Project(status.Input{
				HasConfirmedCertificate: true,
				MinExpiration:           status.MinExpiration(coverages),
				AllRequiredMet:          compared.AllRequiredMet,
			}, now, s.warningWindow())
			return s.apply(ctx, tx, entity.OrgID, &outcome, next, now)
		})
	})

	s.finish(ctx, j, outcome, err)
	return outcome, err
}

// projectStored derives the status of the current certificate at now. The
// comparator runs in memory against the current requirements; stored results
// are rewritten only when they belong to an older requirement set, as left
// behind by a cascade that did not reach this entity.
func (s *Service) projectStored(ctx context.Context, tx *gorm.DB, entity *entitydomain.Entity, now time.Time) (coveragedomain.ComplianceStatus, *snowflake.ID, int, error) {
	cert, err := s.certificateRepo.FindCurrent(ctx, tx, entity.ID)
	if err != nil {
		return "", nil, 0, err
	}
	if cert == nil || entity.TemplateID == nil {
		var certID *snowflake.ID
		if cert != nil {
			id := cert.ID
			certID = &id
		}
		return coveragedomain.StatusPending, certID, 0, nil
	}
	certID := cert.ID

	coverages, err := s.coverageRepo.ListCoverages(ctx, tx, cert.ID)
	if err != nil {
		return "", nil, 0, err
	}
	requirements, err := s.coverageRepo.ListRequirements(ctx, tx, *entity.TemplateID)
	if err != nil {
		return "", nil, 0, err
	}
	stored, err := s.coverageRepo.ListResults(ctx, tx, cert.ID)
	if err != nil {
		return "", nil, 0, err
	}

	compared := comparator.Compare(cert.ID, requirements, coverages)
	if staleResults(stored, requirements) {
		s.log.Info("rewriting stale compliance results",
			zap.String("entity_id", entity.ID.String()),
			zap.String("certificate_id", cert.ID.String()),
		)
		for i := range compared.Results {
			compared.Results[i].ID = s.genID.Generate()
			compared.Results[i].CreatedAt = now
		}
		if err := s.coverageRepo.ReplaceResults(ctx, tx, cert.ID, compared.Results); err != nil {
			return "", nil, 0, err
		}
	}

	next := status.Project(status.Input{
		HasConfirmedCertificate: true,
		MinExpiration:           status.MinExpiration(coverages),
		AllRequiredMet:          compared.AllRequiredMet,
	}, now, s.warningWindow())
	return next, &certID, len(compared.Results), nil
}

// staleResults reports whether stored results were computed against a
// requirement set other than the current one.
func staleResults(stored []coveragedomain.ComplianceResult, requirements []coveragedomain.CoverageRequirement) bool {
	if len(stored) != len(requirements) {
		return true
	}
	current := make(map[snowflake.ID]struct{}, len(requirements))
	for _, r := range requirements {
		current[r.ID] = struct{}{}
	}
	for _, r := range stored {
		if _, ok := current[r.RequirementID]; !ok {
			return true
		}
	}
	return false
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, outcome *coveragedomain.EntityOutcome, next coveragedomain.ComplianceStatus, now time.Time) error {
	outcome.Status = next
	outcome.Changed = next != outcome.Previous
	if !outcome.Changed {
		return nil
	}
	return s.entityRepo.UpdateStatus(ctx, tx, orgID, outcome.EntityID, next, now)
}

// finish records metrics and, for a committed status change, the activity
// event. Event failures are logged only.
func (s *Service) finish(ctx context.Context, j job, outcome coveragedomain.EntityOutcome, err error) {
	if err != nil {
		s.metrics.RecordRecalculation(j.trigger, metrics.OutcomeFailure)
		return
	}
	if !outcome.Changed {
		s.metrics.RecordRecalculation(j.trigger, metrics.OutcomeSkipped)
		return
	}
	s.metrics.RecordRecalculation(j.trigger, metrics.OutcomeSuccess)
	s.metrics.RecordStatusTransition(string(outcome.Previous), string(outcome.Status))

	metadata := map[string]any{
		"from":   string(outcome.Previous),
		"to":     string(outcome.Status),
		"reason": j.reason,
	}
	if outcome.CertificateID != nil {
		metadata["certificate_id"] = outcome.CertificateID.String()
	}
	if auditErr := s.auditSvc.AuditLog(ctx, auditdomain.Entry{
		OrgID:      j.orgID,
		ActorID:    j.actorID,
		Action:     auditdomain.ActionComplianceChanged,
		TargetType: auditdomain.TargetEntity,
		TargetID:   outcome.EntityID.String(),
		Metadata:   metadata,
	}); auditErr != nil {
		s.log.Warn("failed to record status change",
			zap.String("entity_id", outcome.EntityID.String()),
			zap.Error(auditErr),
		)
	}
}

func (s *Service) withEntityLock(ctx context.Context, entityID snowflake.ID, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	unlock, err := s.locker.Lock(lockCtx, ratelimit.EntityLockKey(entityID))
	if err != nil {
		return fmt.Errorf("lock entity %s: %w", entityID, err)
	}
	defer unlock()
	return fn()
}

func (s *Service) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return retry.Do(ctx, retry.TxConfig(), isRetryable, func() error {
		return s.db.WithContext(ctx).Transaction(fn)
	})
}

func (s *Service) warningWindow() time.Duration {
	if s.policy == nil {
		return status.DefaultWarningWindow
	}
	return s.policy.Get().ExpiringWindow()
}

func isRetryable(err error) bool {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return false
	}
	return db.IsRetryableTxErr(err)
}

func triggerFor(reason string) string {
	switch reason {
	case certificatedomain.ReasonConfirmed:
		return metrics.TriggerConfirmation
	case entitydomain.ReasonTemplateAssigned:
		return metrics.TriggerAssignment
	default:
		return metrics.TriggerManual
	}
}
