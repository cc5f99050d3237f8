package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/covercheck/internal/apperror"
	auditdomain "github.com/smallbiznis/covercheck/internal/audit/domain"
	auditrepo "github.com/smallbiznis/covercheck/internal/audit/repository"
	auditservice "github.com/smallbiznis/covercheck/internal/audit/service"
	certificatedomain "github.com/smallbiznis/covercheck/internal/certificate/domain"
	certificaterepo "github.com/smallbiznis/covercheck/internal/certificate/repository"
	"github.com/smallbiznis/covercheck/internal/clock"
	"github.com/smallbiznis/covercheck/internal/compliance/recalc"
	"github.com/smallbiznis/covercheck/internal/config"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
	coveragerepo "github.com/smallbiznis/covercheck/internal/coverage/repository"
	"github.com/smallbiznis/covercheck/internal/dbtest"
	entityrepo "github.com/smallbiznis/covercheck/internal/entity/repository"
	"github.com/smallbiznis/covercheck/internal/extraction"
	"github.com/smallbiznis/covercheck/internal/ratelimit"
	"github.com/smallbiznis/covercheck/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	orgA snowflake.ID = 4001
	orgB snowflake.ID = 4002
)

var (
	testNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	pdf     = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n")
)

type stubGateway struct {
	calls  int
	result *extraction.RawResult
	err    error
}

func (g *stubGateway) Extract(_ context.Context, doc extraction.Document) (*extraction.RawResult, error) {
	g.calls++
	return g.result, g.err
}

// flakyRecalculator fails entity recalculation while err is set.
type flakyRecalculator struct {
	coveragedomain.Recalculator
	err error
}

func (r *flakyRecalculator) RecalculateEntity(ctx context.Context, req coveragedomain.RecalculateEntityRequest) (coveragedomain.EntityOutcome, error) {
	if r.err != nil {
		return coveragedomain.EntityOutcome{}, r.err
	}
	return r.Recalculator.RecalculateEntity(ctx, req)
}

type harness struct {
	db      *gorm.DB
	svc     certificatedomain.Service
	gateway *stubGateway
	store   *storage.MemoryStore
	recalc  *flakyRecalculator
	fx      *dbtest.Fixtures
}

func newHarness(t *testing.T, quota ratelimit.ExtractionQuota) *harness {
	t.Helper()
	db := dbtest.Open(t)
	node := dbtest.Node(t)
	clk := clock.NewFakeClock(testNow)
	entities := entityrepo.Provide()
	certificates := certificaterepo.Provide()
	coverages := coveragerepo.Provide()

	if quota == nil {
		quota = ratelimit.NewMemoryQuota(config.StaticPolicy(config.Policy{
			ExpiringWindowDays: 30,
			Quota:              config.PolicyQuota{PerEntityPerHour: 10, PerOrgPerMonth: 100},
		}))
	}

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
		EntityRepo:      entities,
		CertificateRepo: certificates,
		CoverageRepo:    coverages,
	})

	h := &harness{
		db:      db,
		gateway: &stubGateway{},
		store:   storage.NewMemoryStore(),
		recalc:  &flakyRecalculator{Recalculator: recalculator},
		fx:      dbtest.NewFixtures(t, db, node, testNow),
	}
	h.svc = NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Config: config.Config{Extraction: config.ExtractionConfig{
			Timeout:          5 * time.Second,
			MaxDocumentBytes: 1 << 10,
		}},
		Repo:         certificates,
		EntityRepo:   entities,
		CoverageRepo: coverages,
		Gateway:      h.gateway,
		Quota:        quota,
		Store:        h.store,
		Recalculator: h.recalc,
		AuditSvc:     audit,
	})
	return h
}

func (h *harness) actions(t *testing.T, targetID snowflake.ID) []string {
	t.Helper()
	var rows []auditdomain.AuditLog
	require.NoError(t, h.db.Where("target_id = ?", targetID.String()).Order("created_at asc, id asc").Find(&rows).Error)
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Action)
	}
	return out
}

func glTemplate(h *harness) *snowflake.ID {
	tmpl := h.fx.Template(orgA, "Vendors", coveragedomain.CoverageRequirement{
		CoverageType: coveragedomain.GeneralLiability,
		LimitType:    coveragedomain.LimitPerOccurrence,
		MinimumLimit: dbtest.Amount(1_000_000),
		IsRequired:   true,
	})
	return &tmpl.ID
}

func successfulReply() *extraction.RawResult {
	return &extraction.RawResult{
		Success:     true,
		InsuredName: "ACME PLUMBING, L.L.C.",
		Entities:    "Property Owner LLC, Manager Inc",
		Coverages: []map[string]any{
			{
				"coverage_type":   "CGL",
				"limit_type":      "each occurrence",
				"limit_amount":    "$2,000,000",
				"carrier_name":    "Hartford",
				"policy_number":   "GL-1",
				"expiration_date": "2027-01-31",
				"confidence":      "high",
			},
			{"coverage_type": "crop hail", "limit_amount": 1},
		},
	}
}

func TestUploadExtractsCoverages(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	entity := h.fx.Entity(orgA, "Acme Plumbing", glTemplate(h))
	h.gateway.result = successfulReply()

	detail, err := h.svc.Upload(ctx, certificatedomain.UploadRequest{
		OrgID:       orgA,
		ActorID:     "user-1",
		EntityID:    entity.ID,
		FileName:    "acme-coi.pdf",
		ContentType: "application/pdf",
		Data:        pdf,
	})
	require.NoError(t, err)

	assert.Equal(t, coveragedomain.ProcessingExtracted, detail.ProcessingStatus)
	require.NotNil(t, detail.InsuredName)
	assert.Equal(t, "ACME PLUMBING, L.L.C.", *detail.InsuredName)
	require.NotNil(t, detail.InsuredNameMatch)
	assert.True(t, *detail.InsuredNameMatch)
	assert.Equal(t, []string{"Property Owner LLC", "Manager Inc"}, []string(detail.ExtractedEntities))
	assert.Equal(t, 1, detail.DroppedCoverages)

	require.Len(t, detail.Coverages, 1)
	gl := detail.Coverages[0]
	assert.Equal(t, coveragedomain.GeneralLiability, gl.CoverageType)
	assert.Equal(t, coveragedomain.LimitPerOccurrence, gl.LimitType)
	require.NotNil(t, gl.LimitAmount)
	assert.EqualValues(t, 2_000_000, *gl.LimitAmount)
	assert.Empty(t, detail.Results)

	stored, contentType, ok := h.store.Get(detail.ObjectKey)
	require.True(t, ok)
	assert.Equal(t, pdf, stored)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, strings.HasPrefix(detail.ObjectKey, "orgs/4001/entities/acme-plumbing-"))
	assert.NotEmpty(t, detail.DownloadURL)

	// Extraction alone never changes compliance.
	assert.Equal(t, coveragedomain.StatusPending, h.fx.ReloadEntity(entity.ID).ComplianceStatus)
	assert.Equal(t, []string{auditdomain.ActionCertificateUploaded}, h.actions(t, detail.ID))
}

func TestUploadInsuredNameMismatch(t *testing.T) {
	h := newHarness(t, nil)
	entity := h.fx.Entity(orgA, "Acme Plumbing", nil)
	reply := successfulReply()
	reply.InsuredName = "Zenith Electric Co"
	h.gateway.result = reply

	detail, err := h.svc.Upload(context.Background(), certificatedomain.UploadRequest{
		OrgID: orgA, EntityID: entity.ID, FileName: "z.pdf", Data: pdf,
	})
	require.NoError(t, err)
	require.NotNil(t, detail.InsuredNameMatch)
	assert.False(t, *detail.InsuredNameMatch)
}

func TestUploadValidation(t *testing.T) {
	h := newHarness(t, nil)
	entity := h.fx.Entity(orgA, "Acme", nil)

	cases := []struct {
		name string
		req  certificatedomain.UploadRequest
		want error
	}{
		{name: "org", req: certificatedomain.UploadRequest{EntityID: entity.ID, Data: pdf}, want: certificatedomain.ErrInvalidOrganization},
		{name: "empty", req: certificatedomain.UploadRequest{OrgID: orgA, EntityID: entity.ID}, want: certificatedomain.ErrEmptyDocument},
		{name: "not pdf", req: certificatedomain.UploadRequest{OrgID: orgA, EntityID: entity.ID, Data: []byte("PK\x03\x04")}, want: certificatedomain.ErrNotPDF},
		{name: "content type", req: certificatedomain.UploadRequest{OrgID: orgA, EntityID: entity.ID, Data: pdf, ContentType: "image/png"}, want: certificatedomain.ErrNotPDF},
		{name: "too large", req: certificatedomain.UploadRequest{OrgID: orgA, EntityID: entity.ID, Data: append(append([]byte{}, pdf...), make([]byte, 2<<10)...)}, want: certificatedomain.ErrTooLarge(1 << 10)},
		{name: "foreign entity", req: certificatedomain.UploadRequest{OrgID: orgB, EntityID: entity.ID, Data: pdf}, want: certificatedomain.ErrEntityNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.Upload(context.Background(), tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}
	assert.Zero(t, h.gateway.calls)
	assert.Zero(t, h.store.Len())
}

func TestUploadFailureMarksCertificateFailed(t *testing.T) {
	cases := []struct {
		name    string
		result  *extraction.RawResult
		err     error
		message string
	}{
		{
			name:    "unsuccessful with message",
			result:  &extraction.RawResult{Success: false, UserMessage: "This does not look like a certificate of insurance."},
			message: "This does not look like a certificate of insurance.",
		},
		{
			name:    "gateway error",
			err:     &extraction.GatewayError{Reason: extraction.ReasonServer, StatusCode: 500},
			message: certificatedomain.GenericFailureMessage,
		},
		{
			name:    "timeout",
			err:     context.DeadlineExceeded,
			message: certificatedomain.GenericFailureMessage,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			entity := h.fx.Entity(orgA, "Acme", glTemplate(h))
			h.gateway.result, h.gateway.err = tc.result, tc.err

			_, err := h.svc.Upload(context.Background(), certificatedomain.UploadRequest{
				OrgID: orgA, EntityID: entity.ID, FileName: "a.pdf", Data: pdf,
			})
			require.Error(t, err)
			appErr, ok := apperror.As(err)
			require.True(t, ok)
			assert.Equal(t, apperror.KindExtraction, appErr.Kind)
			assert.Equal(t, tc.message, appErr.Message)

			certs, err := h.svc.ListByEntity(context.Background(), certificatedomain.ListByEntityRequest{OrgID: orgA, EntityID: entity.ID})
			require.NoError(t, err)
			require.Len(t, certs, 1)
			assert.Equal(t, coveragedomain.ProcessingFailed, certs[0].ProcessingStatus)
			require.NotNil(t, certs[0].FailureMessage)
			assert.Equal(t, tc.message, *certs[0].FailureMessage)

			detail, err := h.svc.GetByID(context.Background(), certificatedomain.GetRequest{OrgID: orgA, ID: certs[0].ID})
			require.NoError(t, err)
			assert.Empty(t, detail.Coverages)
			assert.Empty(t, detail.Results)
			assert.Equal(t, []string{auditdomain.ActionCertificateFailed}, h.actions(t, certs[0].ID))

			// A failed certificate can never be confirmed.
			_, err = h.svc.Confirm(context.Background(), certificatedomain.ConfirmRequest{OrgID: orgA, CertificateID: certs[0].ID})
			require.ErrorIs(t, err, certificatedomain.ErrNotReviewable)
		})
	}
}

type denyingQuota struct {
	scope string
}

func (q denyingQuota) Allow(context.Context, snowflake.ID, snowflake.ID, time.Time) (ratelimit.Decision, error) {
	return ratelimit.Decision{Scope: q.scope, Limit: 10, RetryAfter: 25 * time.Minute}, nil
}

type brokenQuota struct{}

func (brokenQuota) Allow(context.Context, snowflake.ID, snowflake.ID, time.Time) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis unavailable")
}

func TestUploadQuotaDeniedBeforeGateway(t *testing.T) {
	h := newHarness(t, denyingQuota{scope: ratelimit.ScopeOrgMonthly})
	entity := h.fx.Entity(orgA, "Acme", nil)

	_, err := h.svc.Upload(context.Background(), certificatedomain.UploadRequest{OrgID: orgA, EntityID: entity.ID, Data: pdf})
	require.Error(t, err)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindRateLimited, appErr.Kind)
	assert.Contains(t, appErr.Message, "this organization")
	assert.Contains(t, appErr.Message, "25 minutes")

	assert.Zero(t, h.gateway.calls)
	assert.Zero(t, h.store.Len())
	certs, err := h.svc.ListByEntity(context.Background(), certificatedomain.ListByEntityRequest{OrgID: orgA, EntityID: entity.ID})
	require.NoError(t, err)
	assert.Empty(t, certs)
}

func TestUploadQuotaErrorIsNotRateLimited(t *testing.T) {
	h := newHarness(t, brokenQuota{})
	entity := h.fx.Entity(orgA, "Acme", nil)

	_, err := h.svc.Upload(context.Background(), certificatedomain.UploadRequest{OrgID: orgA, EntityID: entity.ID, Data: pdf})
	require.Error(t, err)
	assert.False(t, apperror.IsKind(err, apperror.KindRateLimited))
	assert.Zero(t, h.gateway.calls)
}

func TestUploadEntityHourlyQuota(t *testing.T) {
	quota := ratelimit.NewMemoryQuota(config.StaticPolicy(config.Policy{
		Quota: config.PolicyQuota{PerEntityPerHour: 2, PerOrgPerMonth: 100},
	}))
	h := newHarness(t, quota)
	entity := h.fx.Entity(orgA, "Acme", nil)
	other := h.fx.Entity(orgA, "Other", nil)
	h.gateway.result = successfulReply()

	for i := 0; i < 2; i++ {
		_, err := h.svc.Upload(context.Background(), certificatedomain.UploadRequest{OrgID: orgA, EntityID: entity.ID, Data: pdf})
		require.NoError(t, err)
	}
	_, err := h.svc.Upload(context.Background(), certificatedomain.UploadRequest{OrgID: orgA, EntityID: entity.ID, Data: pdf})
	assert.True(t, apperror.IsKind(err, apperror.KindRateLimited))

	_, err = h.svc.Upload(context.Background(), certificatedomain.UploadRequest{OrgID: orgA, EntityID: other.ID, Data: pdf})
	require.NoError(t, err)
	assert.Equal(t, 3, h.gateway.calls)
}

func TestConfirmRecalculatesEntity(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	entity := h.fx.Entity(orgA, "Acme Plumbing", glTemplate(h))
	h.gateway.result = successfulReply()

	uploaded, err := h.svc.Upload(ctx, certificatedomain.UploadRequest{OrgID: orgA, EntityID: entity.ID, Data: pdf})
	require.NoError(t, err)

	_, err = h.svc.Confirm(ctx, certificatedomain.ConfirmRequest{OrgID: orgB, CertificateID: uploaded.ID})
	require.ErrorIs(t, err, certificatedomain.ErrNotFound)

	resp, err := h.svc.Confirm(ctx, certificatedomain.ConfirmRequest{OrgID: orgA, ActorID: "reviewer", CertificateID: uploaded.ID})
	require.NoError(t, err)
	assert.Equal(t, coveragedomain.ProcessingConfirmed, resp.Certificate.ProcessingStatus)
	require.NotNil(t, resp.Certificate.ConfirmedBy)
	assert.Equal(t, "reviewer", *resp.Certificate.ConfirmedBy)
	require.NotNil(t, resp.Outcome)
	assert.Empty(t, resp.RecalculationError)
	assert.Equal(t, coveragedomain.StatusCompliant, resp.Outcome.Status)
	assert.True(t, resp.Outcome.Changed)
	assert.Equal(t, coveragedomain.StatusCompliant, h.fx.ReloadEntity(entity.ID).ComplianceStatus)

	detail, err := h.svc.GetByID(ctx, certificatedomain.GetRequest{OrgID: orgA, ID: uploaded.ID})
	require.NoError(t, err)
	require.Len(t, detail.Results, 1)
	assert.Equal(t, coveragedomain.ResultMet, detail.Results[0].Status)

	// Confirming twice is rejected.
	_, err = h.svc.Confirm(ctx, certificatedomain.ConfirmRequest{OrgID: orgA, CertificateID: uploaded.ID})
	require.ErrorIs(t, err, certificatedomain.ErrNotReviewable)
	assert.Equal(t, []string{auditdomain.ActionCertificateUploaded, auditdomain.ActionCertificateConfirmed}, h.actions(t, uploaded.ID))
}

func TestConfirmStandsWhenRecalculationFails(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	entity := h.fx.Entity(orgA, "Acme Plumbing", glTemplate(h))
	h.gateway.result = successfulReply()

	uploaded, err := h.svc.Upload(ctx, certificatedomain.UploadRequest{OrgID: orgA, EntityID: entity.ID, Data: pdf})
	require.NoError(t, err)

	h.recalc.err = errors.New("lock entity: timed out")
	resp, err := h.svc.Confirm(ctx, certificatedomain.ConfirmRequest{OrgID: orgA, CertificateID: uploaded.ID})
	require.NoError(t, err)
	assert.Equal(t, coveragedomain.ProcessingConfirmed, resp.Certificate.ProcessingStatus)
	assert.Nil(t, resp.Outcome)
	assert.Equal(t, "lock entity: timed out", resp.RecalculationError)
	assert.Equal(t, coveragedomain.StatusPending, h.fx.ReloadEntity(entity.ID).ComplianceStatus)

	h.recalc.err = nil
	_, err = h.svc.Confirm(ctx, certificatedomain.ConfirmRequest{OrgID: orgA, CertificateID: uploaded.ID})
	require.ErrorIs(t, err, certificatedomain.ErrNotReviewable)
}

func TestListByEntity(t *testing.T) {
	h := newHarness(t, nil)
	entity := h.fx.Entity(orgA, "Acme", nil)
	older := h.fx.Certificate(entity, coveragedomain.ProcessingConfirmed, testNow.Add(-48*time.Hour))
	newer := h.fx.Certificate(entity, coveragedomain.ProcessingExtracted, testNow.Add(-time.Hour))

	certs, err := h.svc.ListByEntity(context.Background(), certificatedomain.ListByEntityRequest{OrgID: orgA, EntityID: entity.ID})
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.Equal(t, newer.ID, certs[0].ID)
	assert.Equal(t, older.ID, certs[1].ID)

	_, err = h.svc.ListByEntity(context.Background(), certificatedomain.ListByEntityRequest{OrgID: orgB, EntityID: entity.ID})
	require.ErrorIs(t, err, certificatedomain.ErrEntityNotFound)

	_, err = h.svc.GetByID(context.Background(), certificatedomain.GetRequest{OrgID: orgB, ID: newer.ID})
	require.ErrorIs(t, err, certificatedomain.ErrNotFound)
}
