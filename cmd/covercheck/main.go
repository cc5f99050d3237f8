package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/covercheck/internal/audit"
	"github.com/smallbiznis/covercheck/internal/certificate"
	"github.com/smallbiznis/covercheck/internal/clock"
	"github.com/smallbiznis/covercheck/internal/compliance/recalc"
	"github.com/smallbiznis/covercheck/internal/config"
	"github.com/smallbiznis/covercheck/internal/coverage"
	"github.com/smallbiznis/covercheck/internal/entity"
	"github.com/smallbiznis/covercheck/internal/extraction"
	"github.com/smallbiznis/covercheck/internal/migration"
	"github.com/smallbiznis/covercheck/internal/observability"
	"github.com/smallbiznis/covercheck/internal/ratelimit"
	"github.com/smallbiznis/covercheck/internal/scheduler"
	"github.com/smallbiznis/covercheck/internal/seed"
	"github.com/smallbiznis/covercheck/internal/server"
	"github.com/smallbiznis/covercheck/internal/storage"
	"github.com/smallbiznis/covercheck/internal/template"
	"github.com/smallbiznis/covercheck/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		seed.Module,
		clock.Module,
		ratelimit.Module,
		storage.Module,
		extraction.Module,

		// Functional Domains
		audit.Module,
		coverage.Module,
		template.Module,
		entity.Module,
		certificate.Module,
		recalc.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
