package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/covercheck/internal/clock"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
	"github.com/smallbiznis/covercheck/internal/migration"
	templatedomain "github.com/smallbiznis/covercheck/internal/template/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("seed",
	fx.Provide(NewSeeder),
	fx.Invoke(func(_ migration.Schema, seeder *Seeder) error {
		return seeder.EnsureSystemTemplates(context.Background())
	}),
)

type systemTemplate struct {
	name         string
	description  string
	requirements []coveragedomain.CoverageRequirement
}

func limit(v int64) *int64 { return &v }

// systemTemplates are the read-only defaults every organization can assign
// or duplicate.
var systemTemplates = []systemTemplate{
	{
		name:        "Standard Vendor",
		description: "Baseline coverage for contractors and service vendors working on site.",
		requirements: []coveragedomain.CoverageRequirement{
			{CoverageType: coveragedomain.GeneralLiability, LimitType: coveragedomain.LimitPerOccurrence, MinimumLimit: limit(1_000_000), IsRequired: true, RequiresAdditionalInsured: true, RequiresWaiverOfSubrogation: true},
			{CoverageType: coveragedomain.GeneralLiability, LimitType: coveragedomain.LimitAggregate, MinimumLimit: limit(2_000_000), IsRequired: true},
			{CoverageType: coveragedomain.AutomobileLiability, LimitType: coveragedomain.LimitCombinedSingleLimit, MinimumLimit: limit(1_000_000), IsRequired: true, RequiresAdditionalInsured: true},
			{CoverageType: coveragedomain.WorkersCompensation, LimitType: coveragedomain.LimitStatutory, IsRequired: true, RequiresWaiverOfSubrogation: true},
			{CoverageType: coveragedomain.EmployersLiability, LimitType: coveragedomain.LimitPerAccident, MinimumLimit: limit(500_000), IsRequired: true},
			{CoverageType: coveragedomain.UmbrellaExcessLiability, LimitType: coveragedomain.LimitPerOccurrence, MinimumLimit: limit(1_000_000)},
		},
	},
	{
		name:        "Standard Tenant",
		description: "Typical commercial lease insurance clause.",
		requirements: []coveragedomain.CoverageRequirement{
			{CoverageType: coveragedomain.GeneralLiability, LimitType: coveragedomain.LimitPerOccurrence, MinimumLimit: limit(1_000_000), IsRequired: true, RequiresAdditionalInsured: true},
			{CoverageType: coveragedomain.GeneralLiability, LimitType: coveragedomain.LimitAggregate, MinimumLimit: limit(2_000_000), IsRequired: true},
			{CoverageType: coveragedomain.PropertyInlandMarine, IsRequired: true, RequiresWaiverOfSubrogation: true},
			{CoverageType: coveragedomain.UmbrellaExcessLiability, LimitType: coveragedomain.LimitPerOccurrence, MinimumLimit: limit(1_000_000)},
			{CoverageType: coveragedomain.LiquorLiability, LimitType: coveragedomain.LimitPerOccurrence, MinimumLimit: limit(1_000_000)},
		},
	},
	{
		name:        "Professional Services",
		description: "Consultants, designers and IT providers with office access.",
		requirements: []coveragedomain.CoverageRequirement{
			{CoverageType: coveragedomain.GeneralLiability, LimitType: coveragedomain.LimitPerOccurrence, MinimumLimit: limit(1_000_000), IsRequired: true, RequiresAdditionalInsured: true},
			{CoverageType: coveragedomain.ProfessionalLiabilityEO, LimitType: coveragedomain.LimitAggregate, MinimumLimit: limit(1_000_000), IsRequired: true},
			{CoverageType: coveragedomain.CyberLiability, LimitType: coveragedomain.LimitAggregate, MinimumLimit: limit(1_000_000)},
		},
	},
}

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	TemplateRepo templatedomain.Repository
	CoverageRepo coveragedomain.Repository
}

type Seeder struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	templateRepo templatedomain.Repository
	coverageRepo coveragedomain.Repository
}

func NewSeeder(p Params) *Seeder {
	return &Seeder{
		db:           p.DB,
		log:          p.Log.Named("seed"),
		genID:        p.GenID,
		clock:        p.Clock,
		templateRepo: p.TemplateRepo,
		coverageRepo: p.CoverageRepo,
	}
}

// EnsureSystemTemplates inserts missing system defaults. Existing defaults,
// matched by name, are left untouched.
func (s *Seeder) EnsureSystemTemplates(ctx context.Context) error {
	if s.db == nil {
		return errors.New("seed database handle is required")
	}

	for _, def := range systemTemplates {
		created, err := s.ensureTemplate(ctx, def)
		if err != nil {
			return err
		}
		if created {
			s.log.Info("seeded system template", zap.String("name", def.name))
		}
	}
	return nil
}

func (s *Seeder) ensureTemplate(ctx context.Context, def systemTemplate) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.templateRepo.FindSystemByName(ctx, tx, def.name)
		if err != nil || existing != nil {
			return err
		}

		now := s.clock.Now().UTC()
		tmpl := templatedomain.RequirementTemplate{
			ID:          s.genID.Generate(),
			OrgID:       templatedomain.SystemOrgID,
			Name:        def.name,
			Description: def.description,
			IsSystem:    true,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.templateRepo.Insert(ctx, tx, &tmpl); err != nil {
			return err
		}

		reqs := make([]coveragedomain.CoverageRequirement, len(def.requirements))
		for i, r := range def.requirements {
			r.ID = s.genID.Generate()
			r.TemplateID = tmpl.ID
			r.Position = i
			r.CreatedAt = now
			reqs[i] = r
		}
		if err := coveragedomain.ValidateRequirements(reqs); err != nil {
			return err
		}
		if err := s.coverageRepo.ReplaceRequirements(ctx, tx, tmpl.ID, reqs); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}
