package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lokma/internal/clock"
	"github.com/smallbiznis/lokma/internal/config"
	"github.com/smallbiznis/lokma/internal/lock"
	"github.com/smallbiznis/lokma/internal/migration"
	"github.com/smallbiznis/lokma/internal/observability"
	"github.com/smallbiznis/lokma/internal/scheduler"
	"github.com/smallbiznis/lokma/internal/server"
	"github.com/smallbiznis/lokma/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,
		migration.Module,

		// Functional Domains
		server.Module,
		scheduler.Module,

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
