package main

import (
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/clock"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/config"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/migration"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/observability"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/scheduler"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/server"
	"github.com/LyngualLabs/SpeechAppBackendV2/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		// HTTP surface and the domains behind it
		server.Module,

		// Background payout sweep
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
