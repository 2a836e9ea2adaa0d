package tracker

import (
	"context"

	"github.com/canopy-network/forkx/app/tracker/types"
	"github.com/canopy-network/forkx/pkg/adoption"
	"github.com/canopy-network/forkx/pkg/dashboard"
	"github.com/canopy-network/forkx/pkg/db"
	"github.com/canopy-network/forkx/pkg/db/memory"
	trackerstore "github.com/canopy-network/forkx/pkg/db/postgres/tracker"
	"github.com/canopy-network/forkx/pkg/ingest"
	"github.com/canopy-network/forkx/pkg/logging"
	"github.com/canopy-network/forkx/pkg/redis"
	"github.com/canopy-network/forkx/pkg/stakesync"
	"github.com/canopy-network/forkx/pkg/utils"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New("tracker")
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	store, err := newStore(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize tracker store", zap.Error(err))
	}

	classifier := adoption.NewClassifier(store, logger,
		adoption.WithCacheTTL(utils.EnvDuration("UPGRADE_CACHE_TTL", adoption.DefaultCacheTTL)))

	// Redis is only needed when several tracker instances share one database.
	var redisClient *redis.Client
	var broadcaster adoption.Broadcaster
	if utils.EnvBool("REDIS_ENABLED", false) {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - allow-list changes will reach other instances after the cache TTL",
				zap.Error(err))
			redisClient = nil
		} else {
			broadcaster = redisClient
		}
	} else {
		logger.Info("Redis disabled - allow-list invalidation is local to this instance")
	}

	syncer := stakesync.New(store, logger, stakesync.WithURL(utils.Env("STAKE_SYNC_URL", "")))

	app := &types.App{
		Store:       store,
		Classifier:  classifier,
		Allowlist:   adoption.NewAllowlist(store, classifier, broadcaster, logger),
		Ingest:      ingest.NewService(classifier, store, logger),
		Dashboard:   dashboard.NewBuilder(store, store, utils.EnvInt("RELEASE_PERCENTAGE", dashboard.DefaultReleasePercentage)),
		Syncer:      syncer,
		CronSpec:    utils.Env("STAKE_SYNC_CRON", stakesync.DefaultSchedule),
		RedisClient: redisClient,
		Logger:      logger,
	}

	if syncer.URL() != "" {
		if err := app.SetupScheduler(ctx, cron.VerbosePrintfLogger(zap.NewStdLog(logger))); err != nil {
			logger.Fatal("Unable to schedule stake sync", zap.Error(err), zap.String("cronSpec", app.CronSpec))
		}
	} else {
		logger.Info("STAKE_SYNC_URL not set - stake data is only updated through uploads")
	}

	return app
}

func newStore(ctx context.Context, logger *zap.Logger) (db.Store, error) {
	switch kind := utils.Env("STORE", "postgres"); kind {
	case "memory":
		logger.Warn("Using in-memory tracker store - data is lost on restart")
		return memory.New(), nil
	case "postgres":
		return trackerstore.New(ctx, logger, utils.Env("TRACKER_DB", "forkx"))
	default:
		logger.Fatal("Unknown STORE", zap.String("store", kind))
		return nil, nil
	}
}
