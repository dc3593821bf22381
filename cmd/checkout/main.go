package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/vendelo/checkout/internal/clock"
	"github.com/vendelo/checkout/internal/config"
	"github.com/vendelo/checkout/internal/logger"
	"github.com/vendelo/checkout/internal/migration"
	"github.com/vendelo/checkout/internal/server"
	"github.com/vendelo/checkout/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
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
