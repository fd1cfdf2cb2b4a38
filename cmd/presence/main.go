package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/ottimo/presence/internal/clock"
	"github.com/ottimo/presence/internal/config"
	"github.com/ottimo/presence/internal/migration"
	"github.com/ottimo/presence/internal/observability"
	"github.com/ottimo/presence/internal/server"
	"github.com/ottimo/presence/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
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
