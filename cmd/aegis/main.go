package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/guardline/aegis/internal/clock"
	"github.com/guardline/aegis/internal/config"
	"github.com/guardline/aegis/internal/logger"
	"github.com/guardline/aegis/internal/migration"
	"github.com/guardline/aegis/internal/scheduler"
	"github.com/guardline/aegis/internal/server"
	"github.com/guardline/aegis/pkg/db"
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
		scheduler.Module,
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
