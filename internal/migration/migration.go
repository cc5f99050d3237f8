package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/covercheck/internal/audit/domain"
	certificatedomain "github.com/smallbiznis/covercheck/internal/certificate/domain"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
	entitydomain "github.com/smallbiznis/covercheck/internal/entity/domain"
	templatedomain "github.com/smallbiznis/covercheck/internal/template/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded SQL migrations to a postgres database.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.
	return nil
}

// Models lists every persisted model, for dialects without SQL migrations.
func Models() []any {
	return []any{
		&templatedomain.RequirementTemplate{},
		&coveragedomain.CoverageRequirement{},
		&entitydomain.Entity{},
		&certificatedomain.Certificate{},
		&coveragedomain.ExtractedCoverage{},
		&coveragedomain.ComplianceResult{},
		&auditdomain.AuditLog{},
	}
}

// Migrate applies the schema for the connected dialect.
func Migrate(conn *gorm.DB) error {
	if conn.Dialector.Name() == "postgres" {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
