package dbtest

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	certificatedomain "github.com/smallbiznis/covercheck/internal/certificate/domain"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
	entitydomain "github.com/smallbiznis/covercheck/internal/entity/domain"
	templatedomain "github.com/smallbiznis/covercheck/internal/template/domain"
	"gorm.io/gorm"
)

// Fixtures writes rows directly, bypassing services.
type Fixtures struct {
	t    testing.TB
	db   *gorm.DB
	node *snowflake.Node
	now  time.Time
}

func NewFixtures(t testing.TB, db *gorm.DB, node *snowflake.Node, now time.Time) *Fixtures {
	return &Fixtures{t: t, db: db, node: node, now: now.UTC()}
}

func (f *Fixtures) create(value any) {
	f.t.Helper()
	if err := f.db.Create(value).Error; err != nil {
		f.t.Fatalf("insert %T: %v", value, err)
	}
}

// Template inserts a template owned by orgID, or a system template when
// orgID is SystemOrgID.
func (f *Fixtures) Template(orgID snowflake.ID, name string, reqs ...coveragedomain.CoverageRequirement) templatedomain.RequirementTemplate {
	f.t.Helper()
	tmpl := templatedomain.RequirementTemplate{
		ID:        f.node.Generate(),
		OrgID:     orgID,
		Name:      name,
		IsSystem:  orgID == templatedomain.SystemOrgID,
		Version:   1,
		CreatedAt: f.now,
		UpdatedAt: f.now,
	}
	f.create(&tmpl)
	tmpl.Requirements = f.Requirements(tmpl.ID, reqs...)
	return tmpl
}

// Requirements inserts rows for the template in the given order.
func (f *Fixtures) Requirements(templateID snowflake.ID, reqs ...coveragedomain.CoverageRequirement) []coveragedomain.CoverageRequirement {
	f.t.Helper()
	out := make([]coveragedomain.CoverageRequirement, 0, len(reqs))
	for i, r := range reqs {
		r.ID = f.node.Generate()
		r.TemplateID = templateID
		r.Position = i
		r.CreatedAt = f.now
		f.create(&r)
		out = append(out, r)
	}
	return out
}

func (f *Fixtures) Entity(orgID snowflake.ID, name string, templateID *snowflake.ID) entitydomain.Entity {
	f.t.Helper()
	entity := entitydomain.Entity{
		ID:               f.node.Generate(),
		OrgID:            orgID,
		EntityType:       coveragedomain.EntityVendor,
		Name:             name,
		TemplateID:       templateID,
		ComplianceStatus: coveragedomain.StatusPending,
		CreatedAt:        f.now,
		UpdatedAt:        f.now,
	}
	f.create(&entity)
	return entity
}

// Certificate inserts a certificate in the given state with its coverages.
func (f *Fixtures) Certificate(entity entitydomain.Entity, state coveragedomain.ProcessingStatus, uploadedAt time.Time, coverages ...coveragedomain.ExtractedCoverage) certificatedomain.Certificate {
	f.t.Helper()
	cert := certificatedomain.Certificate{
		ID:               f.node.Generate(),
		OrgID:            entity.OrgID,
		EntityID:         entity.ID,
		FileName:         "coi.pdf",
		ContentType:      "application/pdf",
		SizeBytes:        1024,
		ProcessingStatus: state,
		UploadedAt:       uploadedAt.UTC(),
	}
	f.create(&cert)
	for i, c := range coverages {
		c.ID = f.node.Generate()
		c.CertificateID = cert.ID
		c.Position = i
		c.CreatedAt = f.now
		if c.ConfidenceFlag == "" {
			c.ConfidenceFlag = coveragedomain.ConfidenceHigh
		}
		f.create(&c)
	}
	return cert
}

func (f *Fixtures) ReloadEntity(id snowflake.ID) entitydomain.Entity {
	f.t.Helper()
	var entity entitydomain.Entity
	if err := f.db.Where("id = ?", id).First(&entity).Error; err != nil {
		f.t.Fatalf("reload entity: %v", err)
	}
	return entity
}

// Date returns midnight UTC.
func Date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func Amount(v int64) *int64 { return &v }
