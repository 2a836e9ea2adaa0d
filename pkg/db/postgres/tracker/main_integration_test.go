//go:build integration

package tracker

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
)

var (
	testDB     *DB
	testLogger *zap.Logger
)

// TestMain starts a PostgreSQL container shared by every test in the package.
func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	var err error
	testLogger, err = zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create test logger: %v\n", err)
		return 1
	}
	defer func() { _ = testLogger.Sync() }()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("postgres"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		testLogger.Error("Failed to start PostgreSQL container", zap.Error(err))
		return 1
	}
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			testLogger.Error("Failed to terminate PostgreSQL container", zap.Error(err))
		}
	}()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		testLogger.Error("Failed to get connection string", zap.Error(err))
		return 1
	}
	_ = os.Setenv("POSTGRES_URL", dsn)

	testDB, err = New(ctx, testLogger, "forkx_test")
	if err != nil {
		testLogger.Error("Failed to connect tracker database", zap.Error(err))
		return 1
	}
	defer func() { _ = testDB.Close() }()

	return m.Run()
}

// resetTables truncates every tracker table.
func resetTables(t *testing.T) {
	t.Helper()
	err := testDB.Exec(context.Background(),
		`TRUNCATE node_reports, block_producers, sync_metadata, valid_commits`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
}
