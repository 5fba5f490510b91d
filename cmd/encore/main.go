package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/encore/internal/clock"
	"github.com/smallbiznis/encore/internal/config"
	"github.com/smallbiznis/encore/internal/migration"
	"github.com/smallbiznis/encore/internal/observability"
	"github.com/smallbiznis/encore/internal/server"
	"github.com/smallbiznis/encore/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP surface and the finance domains behind it
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
