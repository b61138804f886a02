// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/shepherd/internal/app/services/contacts"
	"github.com/dalemusser/shepherd/internal/app/system/timeouts"
	"github.com/dalemusser/shepherd/internal/app/system/txn"
	"github.com/dalemusser/shepherd/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// purgeWorker is started in Startup and stopped in Shutdown.
var purgeWorker *workers.ContactPurge

// Startup applies process-wide settings and starts background workers. It
// runs after ConnectDB and EnsureSchema and before BuildHandler.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	txn.Configure(txn.Config{AllowStandaloneFallback: appCfg.TxnStandaloneFallback})
	if appCfg.TxnStandaloneFallback {
		logger.Warn("transactions fall back to plain writes on standalone MongoDB")
	}
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts overridden from environment", zap.Int("count", n))
	}

	svc := contacts.New(deps.MongoDatabase, deps.Cache, deps.Objects, nil, logger)
	w := workers.NewContactPurge(svc, logger, appCfg.PurgeSchedule, appCfg.PurgeRetention, timeouts.Batch())
	if err := w.Start(); err != nil {
		logger.Error("purge worker start failed", zap.Error(err))
		return err
	}
	purgeWorker = w
	return nil
}
