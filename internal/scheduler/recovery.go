package scheduler

import (
	"context"
	"fmt"

	auditdomain "github.com/smallbiznis/covercheck/internal/audit/domain"
	certificatedomain "github.com/smallbiznis/covercheck/internal/certificate/domain"
	"go.uber.org/zap"
)

// RecoverySweepJob fails certificates left in processing past the recovery
// threshold, e.g. after a crash between upload and the extraction reply.
// Failed certificates never reach the comparator, so no recalculation follows.
func (s *Scheduler) RecoverySweepJob(ctx context.Context) error {
	_, run, _ := s.ensureJobRun(ctx, JobRecoverySweep, s.cfg.BatchSize)
	now := s.clock.Now().UTC()
	cutoff := now.Add(-s.cfg.RecoveryThreshold)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		stale, err := s.certificateRepo.ListStaleProcessing(ctx, s.db, cutoff, s.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("list stale certificates: %w", err)
		}
		if len(stale) == 0 {
			return nil
		}

		progressed := 0
		for _, cert := range stale {
			updated, err := s.certificateRepo.MarkFailed(ctx, s.db, cert.ID, certificatedomain.GenericFailureMessage, now)
			if err != nil {
				s.logItemError(ctx, run, "recover stale certificate failed", cert.OrgID, cert.ID, err)
				continue
			}
			progressed++
			if !updated {
				continue
			}
			run.AddProcessed(1)
			run.AddChanged()
			s.recordRecovered(ctx, cert)
		}

		if progressed == 0 {
			return fmt.Errorf("no stale certificate could be recovered out of %d", len(stale))
		}
		if len(stale) < s.cfg.BatchSize {
			return nil
		}
	}
}

func (s *Scheduler) recordRecovered(ctx context.Context, cert certificatedomain.Certificate) {
	err := s.auditSvc.AuditLog(ctx, auditdomain.Entry{
		OrgID:      cert.OrgID,
		Action:     auditdomain.ActionCertificateFailed,
		TargetType: auditdomain.TargetCertificate,
		TargetID:   cert.ID.String(),
		Metadata: map[string]any{
			"entity_id": cert.EntityID.String(),
			"message":   certificatedomain.GenericFailureMessage,
			"recovered": true,
		},
	})
	if err != nil {
		s.logger(ctx).Warn("failed to record certificate recovery",
			zap.String("certificate_id", cert.ID.String()), zap.Error(err))
	}
}
