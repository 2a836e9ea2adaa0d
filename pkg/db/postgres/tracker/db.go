package tracker

import (
	"context"
	"fmt"

	"github.com/alitto/pond/v2"
	store "github.com/canopy-network/forkx/pkg/db"
	"github.com/canopy-network/forkx/pkg/db/postgres"
	"go.uber.org/zap"
)

var _ store.Store = (*DB)(nil)

// DB is the PostgreSQL-backed tracker store.
type DB struct {
	postgres.Client
	Name string

	// updatePool bounds concurrent stake update batches during sync.
	updatePool pond.Pool
}

// New connects to the tracker database and ensures its tables exist.
func New(ctx context.Context, logger *zap.Logger, name string) (*DB, error) {
	poolConfig := postgres.DefaultPoolConfig("tracker")
	client, err := postgres.New(ctx, logger.With(
		zap.String("db", name),
		zap.String("component", poolConfig.Component),
	), name, poolConfig)
	if err != nil {
		return nil, err
	}

	trackerDB := &DB{
		Client:     client,
		Name:       name,
		updatePool: pond.NewPool(updateWorkers),
	}

	if err := trackerDB.InitializeDB(ctx); err != nil {
		trackerDB.Pool.Close()
		return nil, err
	}

	return trackerDB, nil
}

// Close terminates the underlying PostgreSQL connection
func (db *DB) Close() error {
	db.updatePool.StopAndWait()
	db.Pool.Close()
	return nil
}

// InitializeDB ensures the required tables exist
func (db *DB) InitializeDB(ctx context.Context) error {
	db.Logger.Info("Initializing tracker database", zap.String("database", db.Name))

	db.Logger.Debug("Initialize node_reports table", zap.String("database", db.Name))
	if err := db.initNodeReports(ctx); err != nil {
		return fmt.Errorf("init node_reports: %w", err)
	}

	db.Logger.Debug("Initialize block_producers table", zap.String("database", db.Name))
	if err := db.initBlockProducers(ctx); err != nil {
		return fmt.Errorf("init block_producers: %w", err)
	}

	db.Logger.Debug("Initialize valid_commits table", zap.String("database", db.Name))
	if err := db.initValidCommits(ctx); err != nil {
		return fmt.Errorf("init valid_commits: %w", err)
	}

	return nil
}
