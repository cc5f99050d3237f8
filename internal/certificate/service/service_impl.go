package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/covercheck/internal/apperror"
	auditdomain "github.com/smallbiznis/covercheck/internal/audit/domain"
	certificatedomain "github.com/smallbiznis/covercheck/internal/certificate/domain"
	"github.com/smallbiznis/covercheck/internal/clock"
	"github.com/smallbiznis/covercheck/internal/config"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
	entitydomain "github.com/smallbiznis/covercheck/internal/entity/domain"
	"github.com/smallbiznis/covercheck/internal/extraction"
	"github.com/smallbiznis/covercheck/internal/extraction/namematch"
	"github.com/smallbiznis/covercheck/internal/observability/metrics"
	"github.com/smallbiznis/covercheck/internal/ratelimit"
	"github.com/smallbiznis/covercheck/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	contentTypePDF     = "application/pdf"
	defaultMaxDocument = 10 << 20
)

var pdfMagic = []byte("%PDF-")

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Config       config.Config
	Repo         certificatedomain.Repository
	EntityRepo   entitydomain.Repository
	CoverageRepo coveragedomain.Repository
	Gateway      extraction.Gateway
	Quota        ratelimit.ExtractionQuota
	Store        storage.DocumentStore
	Recalculator coveragedomain.Recalculator
	Metrics      *metrics.Metrics `optional:"true"`
	AuditSvc     auditdomain.Service
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	cfg          config.ExtractionConfig
	repo         certificatedomain.Repository
	entityRepo   entitydomain.Repository
	coverageRepo coveragedomain.Repository
	gateway      extraction.Gateway
	quota        ratelimit.ExtractionQuota
	store        storage.DocumentStore
	recalculator coveragedomain.Recalculator
	metrics      *metrics.Metrics
	auditSvc     auditdomain.Service
}

func NewService(p Params) certificatedomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("certificate.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		cfg:          p.Config.Extraction,
		repo:         p.Repo,
		entityRepo:   p.EntityRepo,
		coverageRepo: p.CoverageRepo,
		gateway:      p.Gateway,
		quota:        p.Quota,
		store:        p.Store,
		recalculator: p.Recalculator,
		metrics:      p.Metrics,
		auditSvc:     p.AuditSvc,
	}
}

// Upload stores the document, runs extraction and leaves the certificate
// either extracted (awaiting review) or failed. Quotas are checked before
// anything is stored or sent to the gateway.
func (s *Service) Upload(ctx context.Context, req certificatedomain.UploadRequest) (certificatedomain.Detail, error) {
	if req.OrgID == 0 {
		return certificatedomain.Detail{}, certificatedomain.ErrInvalidOrganization
	}
	contentType, err := s.validateDocument(req)
	if err != nil {
		return certificatedomain.Detail{}, err
	}

	entity, err := s.entityRepo.FindByID(ctx, s.db, req.OrgID, req.EntityID)
	if err != nil {
		return certificatedomain.Detail{}, err
	}
	if entity == nil {
		return certificatedomain.Detail{}, certificatedomain.ErrEntityNotFound
	}

	now := s.clock.Now().UTC()
	decision, err := s.quota.Allow(ctx, req.OrgID, req.EntityID, now)
	if err != nil {
		return certificatedomain.Detail{}, fmt.Errorf("check extraction quota: %w", err)
	}
	if !decision.Allowed {
		s.metrics.RecordQuotaDenied(decision.Scope)
		s.log.Info("extraction quota exceeded",
			zap.String("org_id", req.OrgID.String()),
			zap.String("entity_id", req.EntityID.String()),
			zap.String("scope", decision.Scope),
			zap.Duration("retry_after", decision.RetryAfter),
		)
		return certificatedomain.Detail{}, certificatedomain.ErrQuotaExceeded(decision.Scope == ratelimit.ScopeOrgMonthly, decision.RetryAfter)
	}

	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" {
		fileName = "certificate.pdf"
	}
	cert := certificatedomain.Certificate{
		ID:               s.genID.Generate(),
		OrgID:            req.OrgID,
		EntityID:         req.EntityID,
		FileName:         fileName,
		ContentType:      contentType,
		SizeBytes:        int64(len(req.Data)),
		ProcessingStatus: coveragedomain.ProcessingInProgress,
		UploadedAt:       now,
	}
	cert.ObjectKey = storage.ObjectKey(req.OrgID.Int64(), entity.Name, entity.ID.Int64(), cert.ID.Int64())

	if err := s.store.Put(ctx, cert.ObjectKey, req.Data, contentType); err != nil {
		return certificatedomain.Detail{}, fmt.Errorf("store certificate document: %w", err)
	}
	if err := s.repo.Insert(ctx, s.db, &cert); err != nil {
		return certificatedomain.Detail{}, err
	}

	started := time.Now()
	raw, extractErr := s.extract(ctx, extraction.Document{
		FileName:    fileName,
		ContentType: contentType,
		Data:        req.Data,
	})
	if extractErr != nil || raw == nil || !raw.Success {
		return certificatedomain.Detail{}, s.fail(ctx, req, cert, raw, extractErr, time.Since(started))
	}
	elapsed := time.Since(started)

	result := extraction.Translate(*raw)
	update := certificatedomain.ExtractionUpdate{
		ExtractedEntities: result.Entities,
		DroppedCoverages:  result.Dropped,
		At:                s.clock.Now().UTC(),
	}
	if result.InsuredName != "" {
		insured := result.InsuredName
		match := namematch.Match(entity.Name, insured)
		update.InsuredName = &insured
		update.InsuredNameMatch = &match
	}

	coverages := result.Coverages
	for i := range coverages {
		coverages[i].ID = s.genID.Generate()
		coverages[i].CertificateID = cert.ID
		coverages[i].CreatedAt = update.At
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.coverageRepo.InsertCoverages(ctx, tx, coverages); err != nil {
			return err
		}
		ok, err := s.repo.MarkExtracted(ctx, tx, cert.ID, update)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("certificate %s left processing before extraction finished", cert.ID)
		}
		return nil
	})
	if err != nil {
		return certificatedomain.Detail{}, err
	}

	s.metrics.RecordExtraction(metrics.OutcomeSuccess, elapsed)
	metadata := map[string]any{
		"entity_id":         req.EntityID.String(),
		"file_name":         fileName,
		"coverages":         len(coverages),
		"dropped_coverages": result.Dropped,
	}
	if update.InsuredNameMatch != nil {
		metadata["insured_name_match"] = *update.InsuredNameMatch
	}
	s.audit(ctx, req.OrgID, req.ActorID, auditdomain.ActionCertificateUploaded, cert.ID, metadata)

	return s.GetByID(ctx, certificatedomain.GetRequest{OrgID: req.OrgID, ID: cert.ID})
}

func (s *Service) validateDocument(req certificatedomain.UploadRequest) (string, error) {
	if len(req.Data) == 0 {
		return "", certificatedomain.ErrEmptyDocument
	}
	limit := s.cfg.MaxDocumentBytes
	if limit <= 0 {
		limit = defaultMaxDocument
	}
	if int64(len(req.Data)) > limit {
		return "", certificatedomain.ErrTooLarge(limit)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(req.Data, " \t\r\n"), pdfMagic) {
		return "", certificatedomain.ErrNotPDF
	}

	if req.ContentType != "" {
		mediaType, _, err := mime.ParseMediaType(req.ContentType)
		if err != nil {
			return "", certificatedomain.ErrNotPDF
		}
		switch mediaType {
		case contentTypePDF, "application/x-pdf", "application/octet-stream":
		default:
			return "", certificatedomain.ErrNotPDF
		}
	}
	return contentTypePDF, nil
}

func (s *Service) extract(ctx context.Context, doc extraction.Document) (*extraction.RawResult, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	return s.gateway.Extract(ctx, doc)
}

// fail marks the certificate failed and returns the extraction error shown
// to the user.
func (s *Service) fail(ctx context.Context, req certificatedomain.UploadRequest, cert certificatedomain.Certificate, raw *extraction.RawResult, cause error, elapsed time.Duration) error {
	message := certificatedomain.GenericFailureMessage
	if raw != nil && strings.TrimSpace(raw.UserMessage) != "" {
		message = strings.TrimSpace(raw.UserMessage)
	}
	if cause == nil {
		cause = errors.New("extraction reported no usable result")
	}

	// The request context may be the one that expired.
	writeCtx := context.WithoutCancel(ctx)
	if _, err := s.repo.MarkFailed(writeCtx, s.db, cert.ID, message, s.clock.Now().UTC()); err != nil {
		s.log.Error("failed to mark certificate failed",
			zap.String("certificate_id", cert.ID.String()), zap.Error(err))
	}

	s.metrics.RecordExtraction(metrics.OutcomeFailure, elapsed)
	fields := []zap.Field{
		zap.String("certificate_id", cert.ID.String()),
		zap.String("entity_id", cert.EntityID.String()),
		zap.Error(cause),
	}
	if gwErr := extraction.Classify(cause); gwErr != nil {
		fields = append(fields, zap.String("reason", gwErr.Reason))
	}
	s.log.Warn("certificate extraction failed", fields...)

	s.audit(writeCtx, req.OrgID, req.ActorID, auditdomain.ActionCertificateFailed, cert.ID, map[string]any{
		"entity_id": cert.EntityID.String(),
		"message":   message,
	})
	return apperror.Extraction(message, cause)
}

// Confirm moves an extracted certificate to review_confirmed and recalculates
// its entity, which makes it the entity's current certificate.
func (s *Service) Confirm(ctx context.Context, req certificatedomain.ConfirmRequest) (certificatedomain.ConfirmResponse, error) {
	if req.OrgID == 0 {
		return certificatedomain.ConfirmResponse{}, certificatedomain.ErrInvalidOrganization
	}
	cert, err := s.repo.FindByID(ctx, s.db, req.OrgID, req.CertificateID)
	if err != nil {
		return certificatedomain.ConfirmResponse{}, err
	}
	if cert == nil {
		return certificatedomain.ConfirmResponse{}, certificatedomain.ErrNotFound
	}

	var actor *string
	if req.ActorID != "" {
		actor = &req.ActorID
	}
	ok, err := s.repo.MarkConfirmed(ctx, s.db, cert.ID, actor, s.clock.Now().UTC())
	if err != nil {
		return certificatedomain.ConfirmResponse{}, err
	}
	if !ok {
		return certificatedomain.ConfirmResponse{}, certificatedomain.ErrNotReviewable
	}
	s.audit(ctx, req.OrgID, req.ActorID, auditdomain.ActionCertificateConfirmed, cert.ID, map[string]any{
		"entity_id": cert.EntityID.String(),
	})

	confirmed, err := s.repo.FindByID(ctx, s.db, req.OrgID, cert.ID)
	if err != nil {
		return certificatedomain.ConfirmResponse{}, err
	}
	if confirmed == nil {
		return certificatedomain.ConfirmResponse{}, certificatedomain.ErrNotFound
	}
	resp := certificatedomain.ConfirmResponse{Certificate: *confirmed}

	outcome, err := s.recalculator.RecalculateEntity(ctx, coveragedomain.RecalculateEntityRequest{
		OrgID:    req.OrgID,
		ActorID:  req.ActorID,
		EntityID: cert.EntityID,
		Reason:   certificatedomain.ReasonConfirmed,
	})
	if err != nil {
		s.log.Error("recalculation after confirm failed",
			zap.String("certificate_id", cert.ID.String()),
			zap.String("entity_id", cert.EntityID.String()),
			zap.Error(err),
		)
		resp.RecalculationError = err.Error()
		return resp, nil
	}
	resp.Outcome = &outcome
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, req certificatedomain.GetRequest) (certificatedomain.Detail, error) {
	if req.OrgID == 0 {
		return certificatedomain.Detail{}, certificatedomain.ErrInvalidOrganization
	}
	cert, err := s.repo.FindByID(ctx, s.db, req.OrgID, req.ID)
	if err != nil {
		return certificatedomain.Detail{}, err
	}
	if cert == nil {
		return certificatedomain.Detail{}, certificatedomain.ErrNotFound
	}

	coverages, err := s.coverageRepo.ListCoverages(ctx, s.db, cert.ID)
	if err != nil {
		return certificatedomain.Detail{}, err
	}
	results, err := s.coverageRepo.ListResults(ctx, s.db, cert.ID)
	if err != nil {
		return certificatedomain.Detail{}, err
	}
	if coverages == nil {
		coverages = []coveragedomain.ExtractedCoverage{}
	}
	if results == nil {
		results = []coveragedomain.ComplianceResult{}
	}

	detail := certificatedomain.Detail{Certificate: *cert, Coverages: coverages, Results: results}
	if cert.ObjectKey != "" {
		url, err := s.store.PresignedURL(ctx, cert.ObjectKey)
		if err != nil {
			s.log.Warn("failed to presign certificate document",
				zap.String("certificate_id", cert.ID.String()), zap.Error(err))
		} else {
			detail.DownloadURL = url
		}
	}
	return detail, nil
}

func (s *Service) ListByEntity(ctx context.Context, req certificatedomain.ListByEntityRequest) ([]certificatedomain.Certificate, error) {
	if req.OrgID == 0 {
		return nil, certificatedomain.ErrInvalidOrganization
	}
	entity, err := s.entityRepo.FindByID(ctx, s.db, req.OrgID, req.EntityID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, certificatedomain.ErrEntityNotFound
	}

	items, err := s.repo.ListByEntity(ctx, s.db, req.OrgID, req.EntityID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []certificatedomain.Certificate{}
	}
	return items, nil
}

func (s *Service) audit(ctx context.Context, orgID snowflake.ID, actorID, action string, certID snowflake.ID, metadata map[string]any) {
	if err := s.auditSvc.AuditLog(ctx, auditdomain.Entry{
		OrgID:      orgID,
		ActorID:    actorID,
		Action:     action,
		TargetType: auditdomain.TargetCertificate,
		TargetID:   certID.String(),
		Metadata:   metadata,
	}); err != nil {
		s.log.Warn("failed to record certificate activity", zap.String("action", action), zap.Error(err))
	}
}
