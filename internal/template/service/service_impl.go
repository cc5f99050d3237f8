package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/covercheck/internal/audit/domain"
	"github.com/smallbiznis/covercheck/internal/clock"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
	entitydomain "github.com/smallbiznis/covercheck/internal/entity/domain"
	templatedomain "github.com/smallbiznis/covercheck/internal/template/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         templatedomain.Repository
	CoverageRepo coveragedomain.Repository
	EntityRepo   entitydomain.Repository
	Recalculator coveragedomain.Recalculator
	AuditSvc     auditdomain.Service
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         templatedomain.Repository
	coverageRepo coveragedomain.Repository
	entityRepo   entitydomain.Repository
	recalculator coveragedomain.Recalculator
	auditSvc     auditdomain.Service
}

func NewService(p Params) templatedomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("template.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		coverageRepo: p.CoverageRepo,
		entityRepo:   p.EntityRepo,
		recalculator: p.Recalculator,
		auditSvc:     p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req templatedomain.CreateRequest) (templatedomain.RequirementTemplate, error) {
	if req.OrgID == 0 {
		return templatedomain.RequirementTemplate{}, templatedomain.ErrInvalidOrganization
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return templatedomain.RequirementTemplate{}, templatedomain.ErrInvalidName
	}
	if err := coveragedomain.ValidateRequirements(req.Requirements); err != nil {
		return templatedomain.RequirementTemplate{}, err
	}

	now := s.clock.Now().UTC()
	tmpl := templatedomain.RequirementTemplate{
		ID:          s.genID.Generate(),
		OrgID:       req.OrgID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tmpl.Requirements = s.stampRequirements(tmpl.ID, req.Requirements, now)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &tmpl); err != nil {
			return err
		}
		return s.coverageRepo.ReplaceRequirements(ctx, tx, tmpl.ID, tmpl.Requirements)
	})
	if err != nil {
		return templatedomain.RequirementTemplate{}, err
	}

	s.audit(ctx, req.OrgID, req.ActorID, auditdomain.ActionTemplateCreated, tmpl, map[string]any{
		"name":         tmpl.Name,
		"requirements": len(tmpl.Requirements),
	})
	return tmpl, nil
}

// Update replaces the template's requirement set, then cascades the change to
// every bound entity. The save stands even when the cascade fails.
func (s *Service) Update(ctx context.Context, req templatedomain.UpdateRequest) (templatedomain.UpdateResponse, error) {
	if req.OrgID == 0 {
		return templatedomain.UpdateResponse{}, templatedomain.ErrInvalidOrganization
	}
	if err := coveragedomain.ValidateRequirements(req.Requirements); err != nil {
		return templatedomain.UpdateResponse{}, err
	}

	var tmpl templatedomain.RequirementTemplate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindVisible(ctx, tx, req.OrgID, req.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return templatedomain.ErrNotFound
		}
		if current.IsSystem {
			return templatedomain.ErrSystemImmutable
		}
		if req.ExpectedVersion != nil && *req.ExpectedVersion != current.Version {
			return templatedomain.ErrVersionConflict
		}

		tmpl = *current
		if req.Name != nil {
			tmpl.Name = strings.TrimSpace(*req.Name)
		}
		if tmpl.Name == "" {
			return templatedomain.ErrInvalidName
		}
		if req.Description != nil {
			tmpl.Description = strings.TrimSpace(*req.Description)
		}

		now := s.clock.Now().UTC()
		tmpl.Version = current.Version + 1
		tmpl.UpdatedAt = now

		ok, err := s.repo.UpdateVersioned(ctx, tx, &tmpl, current.Version)
		if err != nil {
			return err
		}
		if !ok {
			return templatedomain.ErrVersionConflict
		}

		tmpl.Requirements = s.stampRequirements(tmpl.ID, req.Requirements, now)
		return s.coverageRepo.ReplaceRequirements(ctx, tx, tmpl.ID, tmpl.Requirements)
	})
	if err != nil {
		return templatedomain.UpdateResponse{}, err
	}

	s.audit(ctx, req.OrgID, req.ActorID, auditdomain.ActionTemplateUpdated, tmpl, map[string]any{
		"version":      tmpl.Version,
		"requirements": len(tmpl.Requirements),
	})

	resp := templatedomain.UpdateResponse{Template: tmpl}
	summary, err := s.recalculator.RecalculateTemplate(ctx, coveragedomain.RecalculateTemplateRequest{
		OrgID:      req.OrgID,
		ActorID:    req.ActorID,
		TemplateID: tmpl.ID,
	})
	if err != nil {
		s.log.Error("template cascade failed",
			zap.String("template_id", tmpl.ID.String()),
			zap.Error(err),
		)
		resp.CascadeError = err.Error()
		return resp, nil
	}
	resp.Cascade = &summary
	return resp, nil
}

// Duplicate copies a visible template, system defaults included, into a new
// template owned by the caller's org.
func (s *Service) Duplicate(ctx context.Context, req templatedomain.DuplicateRequest) (templatedomain.RequirementTemplate, error) {
	if req.OrgID == 0 {
		return templatedomain.RequirementTemplate{}, templatedomain.ErrInvalidOrganization
	}

	source, err := s.GetByID(ctx, templatedomain.GetRequest{OrgID: req.OrgID, ID: req.SourceID})
	if err != nil {
		return templatedomain.RequirementTemplate{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = source.Name + " (copy)"
	}

	created, err := s.createCopy(ctx, req.OrgID, name, source)
	if err != nil {
		return templatedomain.RequirementTemplate{}, err
	}

	s.audit(ctx, req.OrgID, req.ActorID, auditdomain.ActionTemplateDuplicated, created, map[string]any{
		"name":      created.Name,
		"source_id": source.ID.String(),
	})
	return created, nil
}

func (s *Service) createCopy(ctx context.Context, orgID snowflake.ID, name string, source templatedomain.RequirementTemplate) (templatedomain.RequirementTemplate, error) {
	now := s.clock.Now().UTC()
	tmpl := templatedomain.RequirementTemplate{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		Name:        name,
		Description: source.Description,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tmpl.Requirements = s.stampRequirements(tmpl.ID, source.Requirements, now)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &tmpl); err != nil {
			return err
		}
		return s.coverageRepo.ReplaceRequirements(ctx, tx, tmpl.ID, tmpl.Requirements)
	})
	if err != nil {
		return templatedomain.RequirementTemplate{}, err
	}
	return tmpl, nil
}

// Delete removes an org template that no live entity references.
func (s *Service) Delete(ctx context.Context, req templatedomain.DeleteRequest) error {
	if req.OrgID == 0 {
		return templatedomain.ErrInvalidOrganization
	}

	var deleted templatedomain.RequirementTemplate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindVisible(ctx, tx, req.OrgID, req.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return templatedomain.ErrNotFound
		}
		if current.IsSystem {
			return templatedomain.ErrSystemImmutable
		}

		count, err := s.entityRepo.CountByTemplate(ctx, tx, current.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return templatedomain.ErrInUse(count)
		}

		if err := s.entityRepo.DetachDeleted(ctx, tx, current.ID); err != nil {
			return err
		}
		if err := s.coverageRepo.ReplaceRequirements(ctx, tx, current.ID, nil); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, req.OrgID, current.ID); err != nil {
			return err
		}
		deleted = *current
		return nil
	})
	if err != nil {
		return err
	}

	s.audit(ctx, req.OrgID, req.ActorID, auditdomain.ActionTemplateDeleted, deleted, map[string]any{
		"name": deleted.Name,
	})
	return nil
}

func (s *Service) GetByID(ctx context.Context, req templatedomain.GetRequest) (templatedomain.RequirementTemplate, error) {
	if req.OrgID == 0 {
		return templatedomain.RequirementTemplate{}, templatedomain.ErrInvalidOrganization
	}

	tmpl, err := s.repo.FindVisible(ctx, s.db, req.OrgID, req.ID)
	if err != nil {
		return templatedomain.RequirementTemplate{}, err
	}
	if tmpl == nil {
		return templatedomain.RequirementTemplate{}, templatedomain.ErrNotFound
	}

	reqs, err := s.coverageRepo.ListRequirements(ctx, s.db, tmpl.ID)
	if err != nil {
		return templatedomain.RequirementTemplate{}, err
	}
	tmpl.Requirements = reqs
	return *tmpl, nil
}

// List returns the org's templates followed by the system defaults, each
// with its requirement rows.
func (s *Service) List(ctx context.Context, orgID snowflake.ID) ([]templatedomain.RequirementTemplate, error) {
	if orgID == 0 {
		return nil, templatedomain.ErrInvalidOrganization
	}

	items, err := s.repo.List(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		reqs, err := s.coverageRepo.ListRequirements(ctx, s.db, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Requirements = reqs
	}
	return items, nil
}

// stampRequirements assigns fresh ids and positions; callers' ids are ignored.
func (s *Service) stampRequirements(templateID snowflake.ID, reqs []coveragedomain.CoverageRequirement, now time.Time) []coveragedomain.CoverageRequirement {
	out := make([]coveragedomain.CoverageRequirement, len(reqs))
	for i, r := range reqs {
		r.ID = s.genID.Generate()
		r.TemplateID = templateID
		r.Position = i
		r.CreatedAt = now
		out[i] = r
	}
	return out
}

func (s *Service) audit(ctx context.Context, orgID snowflake.ID, actorID, action string, tmpl templatedomain.RequirementTemplate, metadata map[string]any) {
	if err := s.auditSvc.AuditLog(ctx, auditdomain.Entry{
		OrgID:      orgID,
		ActorID:    actorID,
		Action:     action,
		TargetType: auditdomain.TargetTemplate,
		TargetID:   tmpl.ID.String(),
		Metadata:   metadata,
	}); err != nil {
		s.log.Warn("failed to record template activity", zap.String("action", action), zap.Error(err))
	}
}
