package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/covercheck/internal/audit/domain"
	"github.com/smallbiznis/covercheck/internal/audit/repository"
	"github.com/smallbiznis/covercheck/internal/clock"
	"github.com/smallbiznis/covercheck/internal/dbtest"
	"github.com/smallbiznis/covercheck/internal/observability/logger"
	"github.com/smallbiznis/covercheck/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	orgA snowflake.ID = 5001
	orgB snowflake.ID = 5002
)

func newTestService(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    dbtest.Open(t),
		Log:   zap.NewNop(),
		GenID: dbtest.Node(t),
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, clk
}

func TestAuditLogMasksAndTagsRequest(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := logger.WithRequestID(context.Background(), "req-7")

	err := svc.AuditLog(ctx, auditdomain.Entry{
		OrgID:      orgA,
		ActorID:    " reviewer@acme.test ",
		Action:     auditdomain.ActionEntityCreated,
		TargetType: auditdomain.TargetEntity,
		TargetID:   "42",
		Metadata:   map[string]any{"email": "billing@northwind.test", "entity_type": "vendor"},
	})
	require.NoError(t, err)

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{OrgID: orgA})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	row := resp.AuditLogs[0]
	assert.Equal(t, string(auditdomain.ActorTypeUser), row.ActorType)
	require.NotNil(t, row.ActorID)
	assert.Equal(t, "reviewer@acme.test", *row.ActorID)
	assert.Equal(t, "b****@northwind.test", row.Metadata["email"])
	assert.Equal(t, "vendor", row.Metadata["entity_type"])
	assert.Equal(t, "req-7", row.Metadata["request_id"])
}

func TestAuditLogWithoutActorIsSystem(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.AuditLog(context.Background(), auditdomain.Entry{
		OrgID:  orgA,
		Action: auditdomain.ActionComplianceChanged,
	}))

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{OrgID: orgA})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, string(auditdomain.ActorTypeSystem), resp.AuditLogs[0].ActorType)
	assert.Equal(t, "unknown", resp.AuditLogs[0].TargetType)
}

func TestAuditLogRejectsIncompleteEntries(t *testing.T) {
	svc, _ := newTestService(t)

	assert.ErrorIs(t, svc.AuditLog(context.Background(), auditdomain.Entry{OrgID: orgA}), auditdomain.ErrInvalidAction)
	assert.ErrorIs(t, svc.AuditLog(context.Background(), auditdomain.Entry{Action: "x"}), auditdomain.ErrInvalidOrganization)
}

func TestListPagesNewestFirstWithinOrg(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AuditLog(ctx, auditdomain.Entry{OrgID: orgA, Action: auditdomain.ActionTemplateUpdated}))
		clk.Advance(time.Minute)
	}
	require.NoError(t, svc.AuditLog(ctx, auditdomain.Entry{OrgID: orgB, Action: auditdomain.ActionTemplateUpdated}))

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{
		OrgID:      orgA,
		Pagination: pagination.Pagination{PageSize: 2},
	})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	assert.True(t, first.AuditLogs[0].ID > first.AuditLogs[1].ID)

	second, err := svc.List(ctx, auditdomain.ListAuditLogRequest{
		OrgID:      orgA,
		Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, orgA, second.AuditLogs[0].OrgID)
}

func TestListValidatesRequest(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	start := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	_, err := svc.List(ctx, auditdomain.ListAuditLogRequest{OrgID: orgA, StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)

	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{OrgID: orgA, Pagination: pagination.Pagination{PageToken: "%%%"}})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)

	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidOrganization)
}
