package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"NewsWeaver/internal/app"
	"NewsWeaver/internal/config"
	"NewsWeaver/internal/logging"
)

func main() {
	once := flag.Bool("once", false, "run a single processing cycle and exit")
	resynthesize := flag.String("resynthesize", "", "force a new article version for the given cluster id and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("application init failed", "error", err)
		os.Exit(1)
	}

	switch {
	case *resynthesize != "":
		err = application.Resynthesize(ctx, *resynthesize)
	case *once:
		err = application.RunOnce(ctx)
	default:
		err = application.Run(ctx)
	}
	if err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
