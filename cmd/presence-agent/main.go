package main

import (
	"context"

	"github.com/glebarez/sqlite"
	"github.com/ottimo/presence/internal/agent/localapi"
	"github.com/ottimo/presence/internal/agent/queue"
	"github.com/ottimo/presence/internal/agent/reconciler"
	"github.com/ottimo/presence/internal/agent/resilience"
	"github.com/ottimo/presence/internal/agent/transport"
	"github.com/ottimo/presence/internal/clock"
	"github.com/ottimo/presence/internal/config"
	"github.com/ottimo/presence/internal/observability"
	obslogger "github.com/ottimo/presence/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		clock.Module,
		fx.Provide(
			openQueueDB,
			newQueueStore,
			newCaller,
			newTransportClient,
			newSubmitter,
			newReconcilerConfig,
		),
		reconciler.Module,
		localapi.Module,
	)
	app.Run()
}

// openQueueDB opens the agent's local event database. Pure-Go sqlite:
// kiosks and handhelds rarely have a C toolchain.
func openQueueDB(lc fx.Lifecycle, cfg config.Config) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(cfg.Agent.QueuePath), &gorm.Config{
		Logger: obslogger.NewGormLogger(obslogger.DefaultGormLoggerConfig()),
	})
	if err != nil {
		return nil, err
	}
	if err := gdb.AutoMigrate(&queue.Event{}); err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
	return gdb, nil
}

func newQueueStore(gdb *gorm.DB, clk clock.Clock) queue.Store {
	return queue.NewStore(gdb, clk)
}

func newCaller(cfg config.Config, log *zap.Logger) *resilience.Caller {
	policy := resilience.PolicyFromPreset(cfg.Agent.ResiliencePreset)
	return resilience.NewCaller("attendance_intake", policy, log)
}

func newTransportClient(cfg config.Config, log *zap.Logger) *transport.Client {
	return transport.NewClient(transport.Config{
		BaseURL:        cfg.Agent.ServerURL,
		OrganizationID: cfg.Agent.OrganizationID,
		DeviceID:       cfg.Agent.DeviceID,
		RequestTimeout: cfg.Agent.RequestTimeout,
	}, log)
}

func newSubmitter(c *transport.Client) reconciler.Submitter {
	return c
}

func newReconcilerConfig(cfg config.Config) reconciler.Config {
	return reconciler.Config{
		SyncInterval:   cfg.Agent.SyncInterval,
		BatchSize:      cfg.Agent.BatchSize,
		AbandonCeiling: cfg.Agent.AbandonCeiling,
	}
}
