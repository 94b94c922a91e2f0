package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"snapsheet/internal/catalog"
	"snapsheet/internal/config"
	"snapsheet/internal/daemon"
	"snapsheet/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, path, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	if path != "" {
		logger.Info("configuration loaded", logging.String("path", path))
	}

	journal, err := catalog.Open(cfg)
	if err != nil {
		logger.Error("open batch journal", logging.Error(err))
		return
	}

	d, err := daemon.New(cfg, journal, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = journal.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("snapsheetd shutting down")
	d.Stop()
}
