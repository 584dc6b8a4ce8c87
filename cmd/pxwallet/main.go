package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pxwallet/internal/clock"
	"github.com/smallbiznis/pxwallet/internal/config"
	"github.com/smallbiznis/pxwallet/internal/migration"
	"github.com/smallbiznis/pxwallet/internal/observability"
	"github.com/smallbiznis/pxwallet/internal/scheduler"
	"github.com/smallbiznis/pxwallet/internal/server"
	"github.com/smallbiznis/pxwallet/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP API with every domain module
		server.Module,

		// Lazy sweeps on reads plus the periodic sweep
		scheduler.Module,
		scheduler.Background,
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
