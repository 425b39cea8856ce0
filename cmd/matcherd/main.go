package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/bounan/Bounan.Matcher/internal/config"
	"github.com/bounan/Bounan.Matcher/internal/daemon"
	"github.com/bounan/Bounan.Matcher/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	loop := buildLoop(cfg, logger)

	d, err := daemon.New(cfg, loop, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("matcherd shutting down")
}
