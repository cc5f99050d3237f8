package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditrepo "github.com/smallbiznis/covercheck/internal/audit/repository"
	auditservice "github.com/smallbiznis/covercheck/internal/audit/service"
	certificaterepo "github.com/smallbiznis/covercheck/internal/certificate/repository"
	"github.com/smallbiznis/covercheck/internal/clock"
	"github.com/smallbiznis/covercheck/internal/compliance/recalc"
	"github.com/smallbiznis/covercheck/internal/config"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
	coveragerepo "github.com/smallbiznis/covercheck/internal/coverage/repository"
	"github.com/smallbiznis/covercheck/internal/dbtest"
	entitydomain "github.com/smallbiznis/covercheck/internal/entity/domain"
	entityrepo "github.com/smallbiznis/covercheck/internal/entity/repository"
	"github.com/smallbiznis/covercheck/internal/ratelimit"
	templaterepo "github.com/smallbiznis/covercheck/internal/template/repository"
	"github.com/smallbiznis/covercheck/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	orgA snowflake.ID = 3001
	orgB snowflake.ID = 3002
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	svc entitydomain.Service
	fx  *dbtest.Fixtures
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.Open(t)
	node := dbtest.Node(t)
	clk := clock.NewFakeClock(testNow)
	repo := entityrepo.Provide()

	audit := auditservice.NewService(auditservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: auditrepo.Provide(),
	})
	recalculator := recalc.NewService(recalc.Params{
		DB:              db,
		Log:             zap.NewNop(),
		GenID:           node,
		Clock:           clk,
		Policy:          config.StaticPolicy(config.Policy{ExpiringWindowDays: 30}),
		Locker:          ratelimit.NewKeyedMutex(),
		AuditSvc:        audit,
		EntityRepo:      repo,
		CertificateRepo: certificaterepo.Provide(),
		CoverageRepo:    coveragerepo.Provide(),
	})

	svc := NewService(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        clk,
		Repo:         repo,
		TemplateRepo: templaterepo.Provide(),
		Recalculator: recalculator,
		AuditSvc:     audit,
	})
	return &harness{svc: svc, fx: dbtest.NewFixtures(t, db, node, testNow)}
}

func TestCreateEntity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	entity, err := h.svc.Create(ctx, entitydomain.CreateRequest{
		OrgID:      orgA,
		EntityType: coveragedomain.EntityVendor,
		Name:       " Acme Plumbing ",
		Email:      "Ops@Acme.example",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Plumbing", entity.Name)
	assert.Equal(t, "ops@acme.example", entity.Email)
	assert.Equal(t, coveragedomain.StatusPending, entity.ComplianceStatus)

	got, err := h.svc.GetByID(ctx, entitydomain.GetRequest{OrgID: orgA, ID: entity.ID})
	require.NoError(t, err)
	assert.Equal(t, entity.ID, got.ID)

	_, err = h.svc.GetByID(ctx, entitydomain.GetRequest{OrgID: orgB, ID: entity.ID})
	require.ErrorIs(t, err, entitydomain.ErrNotFound)
}

func TestCreateEntityValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	foreign := h.fx.Template(orgB, "Theirs")

	cases := []struct {
		name string
		req  entitydomain.CreateRequest
		want error
	}{
		{name: "org", req: entitydomain.CreateRequest{EntityType: coveragedomain.EntityVendor, Name: "x"}, want: entitydomain.ErrInvalidOrganization},
		{name: "type", req: entitydomain.CreateRequest{OrgID: orgA, EntityType: "landlord", Name: "x"}, want: entitydomain.ErrInvalidType},
		{name: "name", req: entitydomain.CreateRequest{OrgID: orgA, EntityType: coveragedomain.EntityTenant}, want: entitydomain.ErrInvalidName},
		{name: "email", req: entitydomain.CreateRequest{OrgID: orgA, EntityType: coveragedomain.EntityTenant, Name: "x", Email: "not-an-email"}, want: entitydomain.ErrInvalidEmail},
		{name: "foreign template", req: entitydomain.CreateRequest{OrgID: orgA, EntityType: coveragedomain.EntityTenant, Name: "x", TemplateID: &foreign.ID}, want: entitydomain.ErrTemplateNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.Create(ctx, tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestListEntitiesPaginatesByName(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, name := range []string{"Delta", "Alpha", "Charlie", "Bravo"} {
		h.fx.Entity(orgA, name, nil)
	}
	h.fx.Entity(orgB, "Aardvark", nil)

	first, err := h.svc.List(ctx, entitydomain.ListRequest{OrgID: orgA, Pagination: pagination.Pagination{PageSize: 3}})
	require.NoError(t, err)
	require.Len(t, first.Entities, 3)
	assert.Equal(t, "Alpha", first.Entities[0].Name)
	assert.Equal(t, "Charlie", first.Entities[2].Name)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)

	second, err := h.svc.List(ctx, entitydomain.ListRequest{
		OrgID:      orgA,
		Pagination: pagination.Pagination{PageSize: 3, PageToken: first.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, second.Entities, 1)
	assert.Equal(t, "Delta", second.Entities[0].Name)
	assert.False(t, second.HasMore)

	_, err = h.svc.List(ctx, entitydomain.ListRequest{OrgID: orgA, Pagination: pagination.Pagination{PageToken: "%%%"}})
	require.ErrorIs(t, err, entitydomain.ErrInvalidPageToken)

	_, err = h.svc.List(ctx, entitydomain.ListRequest{OrgID: orgA, Status: "great"})
	require.ErrorIs(t, err, entitydomain.ErrInvalidStatus)
}

func TestDeleteEntity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	entity := h.fx.Entity(orgA, "Acme", nil)

	require.ErrorIs(t, h.svc.Delete(ctx, entitydomain.DeleteRequest{OrgID: orgB, ID: entity.ID}), entitydomain.ErrNotFound)
	require.NoError(t, h.svc.Delete(ctx, entitydomain.DeleteRequest{OrgID: orgA, ID: entity.ID}))
	require.ErrorIs(t, h.svc.Delete(ctx, entitydomain.DeleteRequest{OrgID: orgA, ID: entity.ID}), entitydomain.ErrNotFound)

	_, err := h.svc.GetByID(ctx, entitydomain.GetRequest{OrgID: orgA, ID: entity.ID})
	require.ErrorIs(t, err, entitydomain.ErrNotFound)
}

func TestAssignTemplateRecalculates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	strict := h.fx.Template(orgA, "Strict", coveragedomain.CoverageRequirement{
		CoverageType: coveragedomain.GeneralLiability,
		LimitType:    coveragedomain.LimitPerOccurrence,
		MinimumLimit: dbtest.Amount(5_000_000),
		IsRequired:   true,
	})
	system := h.fx.Template(0, "Standard Vendor", coveragedomain.CoverageRequirement{
		CoverageType: coveragedomain.GeneralLiability,
		LimitType:    coveragedomain.LimitPerOccurrence,
		MinimumLimit: dbtest.Amount(1_000_000),
		IsRequired:   true,
	})

	entity := h.fx.Entity(orgA, "Acme", nil)
	h.fx.Certificate(entity, coveragedomain.ProcessingConfirmed, testNow, coveragedomain.ExtractedCoverage{
		CoverageType:   coveragedomain.GeneralLiability,
		LimitType:      coveragedomain.LimitPerOccurrence,
		LimitAmount:    dbtest.Amount(2_000_000),
		ExpirationDate: dbtest.Date(2027, 6, 1),
	})

	resp, err := h.svc.AssignTemplate(ctx, entitydomain.AssignTemplateRequest{OrgID: orgA, EntityID: entity.ID, TemplateID: &strict.ID})
	require.NoError(t, err)
	assert.Equal(t, coveragedomain.StatusNonCompliant, resp.Outcome.Status)
	assert.Equal(t, coveragedomain.StatusNonCompliant, resp.Entity.ComplianceStatus)
	require.NotNil(t, resp.Entity.TemplateID)
	assert.Equal(t, strict.ID, *resp.Entity.TemplateID)

	resp, err = h.svc.AssignTemplate(ctx, entitydomain.AssignTemplateRequest{OrgID: orgA, EntityID: entity.ID, TemplateID: &system.ID})
	require.NoError(t, err)
	assert.Equal(t, coveragedomain.StatusCompliant, resp.Entity.ComplianceStatus)

	resp, err = h.svc.AssignTemplate(ctx, entitydomain.AssignTemplateRequest{OrgID: orgA, EntityID: entity.ID})
	require.NoError(t, err)
	assert.Nil(t, resp.Entity.TemplateID)
	assert.Equal(t, coveragedomain.StatusPending, resp.Entity.ComplianceStatus)
}

func TestAssignTemplateRejectsForeignTemplate(t *testing.T) {
	h := newHarness(t)
	foreign := h.fx.Template(orgB, "Theirs")
	entity := h.fx.Entity(orgA, "Acme", nil)

	_, err := h.svc.AssignTemplate(context.Background(), entitydomain.AssignTemplateRequest{
		OrgID: orgA, EntityID: entity.ID, TemplateID: &foreign.ID,
	})
	require.ErrorIs(t, err, entitydomain.ErrTemplateNotFound)
	assert.Nil(t, h.fx.ReloadEntity(entity.ID).TemplateID)
}
