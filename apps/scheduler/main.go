package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pxwallet/internal/clock"
	"github.com/smallbiznis/pxwallet/internal/config"
	"github.com/smallbiznis/pxwallet/internal/escrow"
	"github.com/smallbiznis/pxwallet/internal/ledger"
	"github.com/smallbiznis/pxwallet/internal/observability"
	"github.com/smallbiznis/pxwallet/internal/ratelimit"
	"github.com/smallbiznis/pxwallet/internal/scheduler"
	"github.com/smallbiznis/pxwallet/internal/subscription"
	"github.com/smallbiznis/pxwallet/internal/wallet"
	"github.com/smallbiznis/pxwallet/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Domain services required by scheduler
		ratelimit.Module,
		escrow.Module,
		ledger.Module,
		wallet.Module,
		subscription.Module,

		// No server module!
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
