// Command metalpulse-refresh runs one sentiment refresh and exits. It is
// meant for cron; the exit status is non-zero when the refresh could not
// start or any instrument failed.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metalpulse/internal/app"
	"metalpulse/internal/config"
	"metalpulse/internal/refresh"
)

func main() {
	config.LoadDotenv()

	cfgPath := "config/metalpulse.yaml"
	if p := os.Getenv("METALPULSE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, closeLog, err := app.Logger(cfg, "metalpulse-refresh")
	if err != nil {
		log.Fatalf("opening log file: %v", err)
	}
	defer closeLog()

	a, err := app.New(cfg, logger)
	if err != nil {
		log.Fatalf("initializing: %v", err)
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sum, err := a.Refresher.Run(ctx)
	switch {
	case errors.Is(err, refresh.ErrMissingAPIKey):
		logger.Error("refresh not started", "error", err, "hint", "set HUGGINGFACE_API_KEY")
		os.Exit(2)
	case err != nil:
		logger.Error("refresh failed", "error", err)
		os.Exit(1)
	}

	logger.Info("refresh complete",
		"run", sum.RunID,
		"processed", len(sum.Processed),
		"dates_processed", sum.DatesProcessed,
		"dates_skipped", sum.DatesSkipped,
		"errors", len(sum.Errors),
		"api_requests", sum.RequestsUsed,
		"elapsed", sum.FinishedAt.Sub(sum.StartedAt).Round(time.Millisecond),
	)
	if len(sum.Errors) > 0 {
		os.Exit(1)
	}
}
