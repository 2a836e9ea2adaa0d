package types

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/canopy-network/forkx/pkg/adoption"
	"github.com/canopy-network/forkx/pkg/dashboard"
	"github.com/canopy-network/forkx/pkg/db"
	"github.com/canopy-network/forkx/pkg/ingest"
	"github.com/canopy-network/forkx/pkg/redis"
	"github.com/canopy-network/forkx/pkg/stakesync"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type App struct {
	// Tracker store (postgres or memory)
	Store db.Store

	// Core
	Classifier *adoption.Classifier
	Allowlist  *adoption.Allowlist
	Ingest     *ingest.Service
	Dashboard  *dashboard.Builder

	// Stake registry sync (upload endpoint and optional cron download)
	Syncer   *stakesync.Syncer
	Cron     *cron.Cron
	CronSpec string

	// Redis Client (allow-list invalidation fan-out, optional)
	RedisClient *redis.Client

	// Zap Logger
	Logger *zap.Logger

	// HTTP Server
	Server *http.Server
}

// SetupScheduler registers the periodic stake sync. Seconds field, optional.
func (a *App) SetupScheduler(ctx context.Context, logger cron.Logger) error {
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger)))

	// keep each run bounded
	_, err := a.Syncer.Schedule(ctx, a.Cron, a.CronSpec, 2*time.Minute)
	return err
}

// Start starts the application and blocks until ctx is cancelled or the HTTP server fails.
// A server failure is returned after the rest of the app has been shut down.
func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.Cron != nil {
		a.Cron.Start()
		a.Logger.Info("[tracker] Cron started", zap.String("cronSpec", a.CronSpec), zap.String("url", a.Syncer.URL()))
	}

	if a.RedisClient != nil {
		go func() {
			if err := a.RedisClient.ListenInvalidations(ctx, a.Classifier.Invalidate); err != nil {
				a.Logger.Warn("Allow-list invalidation listener stopped", zap.Error(err))
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("HTTP server failed", zap.Error(err))
			serveErr <- err
			cancel()
		}
	}()
	<-ctx.Done()

	if a.Cron != nil {
		a.Logger.Info("stopping cron")
		<-a.Cron.Stop().Done()
	}

	a.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Server.Shutdown(shutdownCtx)

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}

	if a.Store != nil {
		a.Logger.Info("closing tracker store")
		if err := a.Store.Close(); err != nil {
			a.Logger.Error("Failed to close tracker store", zap.Error(err))
		}
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}
