package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/canopy-network/forkx/app/tracker"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := tracker.Initialize(ctx)

	serverErr := tracker.NewServer(app)
	if serverErr != nil {
		app.Logger.Fatal("Unable to initialize server", zap.Error(serverErr))
	}

	if err := app.Start(ctx); err != nil {
		app.Logger.Fatal("Tracker stopped", zap.Error(err))
	}
}
