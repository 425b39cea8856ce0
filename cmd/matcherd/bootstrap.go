package main

import (
	"log/slog"
	"time"

	"github.com/bounan/Bounan.Matcher/internal/animan"
	"github.com/bounan/Bounan.Matcher/internal/audio"
	"github.com/bounan/Bounan.Matcher/internal/config"
	"github.com/bounan/Bounan.Matcher/internal/hls"
	"github.com/bounan/Bounan.Matcher/internal/loanapi"
	"github.com/bounan/Bounan.Matcher/internal/matcher"
	"github.com/bounan/Bounan.Matcher/internal/recognizer"
	"github.com/bounan/Bounan.Matcher/internal/service"
)

func buildLoop(cfg *config.Config, logger *slog.Logger) *service.Loop {
	queue := animan.NewClient(cfg)
	catalog := loanapi.NewClient(cfg)
	manifests := hls.NewClient(time.Duration(cfg.Download.RequestTimeout) * time.Second)
	merger := audio.NewDownloader(cfg)
	rec := recognizer.NewCLI(
		recognizer.WithBinary(cfg.Recognizer.Binary),
		recognizer.WithSeriesWindow(cfg.Matching.EpisodesToMatch),
		recognizer.WithTimeout(time.Duration(cfg.Recognizer.TimeoutSeconds)*time.Second),
	)

	controller := matcher.NewController(cfg, catalog, queue, manifests, merger, rec, logger)
	return service.NewLoop(cfg, queue, controller, logger)
}
