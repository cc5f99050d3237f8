package service

import (
	"context"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/covercheck/internal/audit/domain"
	"github.com/smallbiznis/covercheck/internal/clock"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
	entitydomain "github.com/smallbiznis/covercheck/internal/entity/domain"
	templatedomain "github.com/smallbiznis/covercheck/internal/template/domain"
	"github.com/smallbiznis/covercheck/pkg/db/pagination"
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
	Repo         entitydomain.Repository
	TemplateRepo templatedomain.Repository
	Recalculator coveragedomain.Recalculator
	AuditSvc     auditdomain.Service
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         entitydomain.Repository
	templateRepo templatedomain.Repository
	recalculator coveragedomain.Recalculator
	auditSvc     auditdomain.Service
}

func NewService(p Params) entitydomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("entity.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		templateRepo: p.TemplateRepo,
		recalculator: p.Recalculator,
		auditSvc:     p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req entitydomain.CreateRequest) (entitydomain.Entity, error) {
	if req.OrgID == 0 {
		return entitydomain.Entity{}, entitydomain.ErrInvalidOrganization
	}
	if !req.EntityType.Valid() {
		return entitydomain.Entity{}, entitydomain.ErrInvalidType
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return entitydomain.Entity{}, entitydomain.ErrInvalidName
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return entitydomain.Entity{}, err
	}

	now := s.clock.Now().UTC()
	entity := entitydomain.Entity{
		ID:               s.genID.Generate(),
		OrgID:            req.OrgID,
		EntityType:       req.EntityType,
		Name:             name,
		Email:            email,
		TemplateID:       req.TemplateID,
		ComplianceStatus: coveragedomain.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if entity.TemplateID != nil {
			if err := s.ensureTemplate(ctx, tx, req.OrgID, *entity.TemplateID); err != nil {
				return err
			}
		}
		return s.repo.Insert(ctx, tx, &entity)
	})
	if err != nil {
		return entitydomain.Entity{}, err
	}

	s.audit(ctx, req.OrgID, req.ActorID, auditdomain.ActionEntityCreated, entity.ID, map[string]any{
		"name":        entity.Name,
		"entity_type": string(entity.EntityType),
	})
	return entity, nil
}

func (s *Service) GetByID(ctx context.Context, req entitydomain.GetRequest) (entitydomain.Entity, error) {
	if req.OrgID == 0 {
		return entitydomain.Entity{}, entitydomain.ErrInvalidOrganization
	}
	entity, err := s.repo.FindByID(ctx, s.db, req.OrgID, req.ID)
	if err != nil {
		return entitydomain.Entity{}, err
	}
	if entity == nil {
		return entitydomain.Entity{}, entitydomain.ErrNotFound
	}
	return *entity, nil
}

func (s *Service) List(ctx context.Context, req entitydomain.ListRequest) (entitydomain.ListResponse, error) {
	if req.OrgID == 0 {
		return entitydomain.ListResponse{}, entitydomain.ErrInvalidOrganization
	}
	if req.EntityType != "" && !req.EntityType.Valid() {
		return entitydomain.ListResponse{}, entitydomain.ErrInvalidType
	}
	if req.Status != "" && !req.Status.Valid() {
		return entitydomain.ListResponse{}, entitydomain.ErrInvalidStatus
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return entitydomain.ListResponse{}, entitydomain.ErrInvalidPageToken
	}

	limit := req.Limit()
	filter := entitydomain.ListFilter{
		OrgID:      req.OrgID,
		EntityType: req.EntityType,
		Status:     req.Status,
		TemplateID: req.TemplateID,
		Limit:      limit,
	}
	if cursor != nil {
		filter.AfterID = snowflake.ID(cursor.ID)
		filter.AfterName = cursor.Key
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return entitydomain.ListResponse{}, err
	}

	entities, pageInfo, err := pagination.Trim(items, limit, func(item entitydomain.Entity) pagination.Cursor {
		return pagination.Cursor{ID: item.ID.Int64(), Key: item.Name}
	})
	if err != nil {
		return entitydomain.ListResponse{}, err
	}
	if entities == nil {
		entities = []entitydomain.Entity{}
	}
	return entitydomain.ListResponse{PageInfo: pageInfo, Entities: entities}, nil
}

// Delete soft-deletes the entity. Its certificates stay as history.
func (s *Service) Delete(ctx context.Context, req entitydomain.DeleteRequest) error {
	if req.OrgID == 0 {
		return entitydomain.ErrInvalidOrganization
	}
	ok, err := s.repo.SoftDelete(ctx, s.db, req.OrgID, req.ID, s.clock.Now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return entitydomain.ErrNotFound
	}

	s.audit(ctx, req.OrgID, req.ActorID, auditdomain.ActionEntityDeleted, req.ID, nil)
	return nil
}

// AssignTemplate binds the entity to a visible template, or unbinds it when
// TemplateID is nil, then recalculates the entity against the new template.
func (s *Service) AssignTemplate(ctx context.Context, req entitydomain.AssignTemplateRequest) (entitydomain.AssignTemplateResponse, error) {
	if req.OrgID == 0 {
		return entitydomain.AssignTemplateResponse{}, entitydomain.ErrInvalidOrganization
	}

	var previous *snowflake.ID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entity, err := s.repo.FindByID(ctx, tx, req.OrgID, req.EntityID)
		if err != nil {
			return err
		}
		if entity == nil {
			return entitydomain.ErrNotFound
		}
		previous = entity.TemplateID

		if req.TemplateID != nil {
			if err := s.ensureTemplate(ctx, tx, req.OrgID, *req.TemplateID); err != nil {
				return err
			}
		}
		return s.repo.UpdateTemplate(ctx, tx, req.OrgID, req.EntityID, req.TemplateID, s.clock.Now().UTC())
	})
	if err != nil {
		return entitydomain.AssignTemplateResponse{}, err
	}

	metadata := map[string]any{"template_id": idString(req.TemplateID)}
	if previous != nil {
		metadata["previous_template_id"] = previous.String()
	}
	s.audit(ctx, req.OrgID, req.ActorID, auditdomain.ActionEntityTemplateSet, req.EntityID, metadata)

	outcome, err := s.recalculator.RecalculateEntity(ctx, coveragedomain.RecalculateEntityRequest{
		OrgID:    req.OrgID,
		ActorID:  req.ActorID,
		EntityID: req.EntityID,
		Reason:   entitydomain.ReasonTemplateAssigned,
	})
	if err != nil {
		return entitydomain.AssignTemplateResponse{}, err
	}

	entity, err := s.GetByID(ctx, entitydomain.GetRequest{OrgID: req.OrgID, ID: req.EntityID})
	if err != nil {
		return entitydomain.AssignTemplateResponse{}, err
	}
	return entitydomain.AssignTemplateResponse{Entity: entity, Outcome: outcome}, nil
}

func (s *Service) ensureTemplate(ctx context.Context, tx *gorm.DB, orgID, templateID snowflake.ID) error {
	tmpl, err := s.templateRepo.FindVisible(ctx, tx, orgID, templateID)
	if err != nil {
		return err
	}
	if tmpl == nil {
		return entitydomain.ErrTemplateNotFound
	}
	return nil
}

func (s *Service) audit(ctx context.Context, orgID snowflake.ID, actorID, action string, entityID snowflake.ID, metadata map[string]any) {
	if err := s.auditSvc.AuditLog(ctx, auditdomain.Entry{
		OrgID:      orgID,
		ActorID:    actorID,
		Action:     action,
		TargetType: auditdomain.TargetEntity,
		TargetID:   entityID.String(),
		Metadata:   metadata,
	}); err != nil {
		s.log.Warn("failed to record entity activity", zap.String("action", action), zap.Error(err))
	}
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", entitydomain.ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

func idString(id *snowflake.ID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
