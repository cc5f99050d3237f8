package migration

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Schema marks a migrated database. Components that write at startup depend
// on it to run after migrations.
type Schema struct {
	Dialect string
}

var Module = fx.Module("migrations",
	fx.Provide(func(conn *gorm.DB, log *zap.Logger) (Schema, error) {
		if err := Migrate(conn); err != nil {
			return Schema{}, err
		}
		log.Info("schema ready", zap.String("dialect", conn.Dialector.Name()))
		return Schema{Dialect: conn.Dialector.Name()}, nil
	}),
)
