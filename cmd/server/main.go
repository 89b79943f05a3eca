package main // Entry point package

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/event-ticketing/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	if applied, err := a.Migrate(ctx); err != nil {
		a.Logger.Error("migration failed", "error", err)
		os.Exit(1)
	} else if len(applied) > 0 {
		a.Logger.Info("migrations applied", "versions", applied)
	}

	if err := a.Serve(ctx); err != nil {
		a.Logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
