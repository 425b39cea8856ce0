package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/bounan/Bounan.Matcher/internal/animan"
	"github.com/bounan/Bounan.Matcher/internal/audio"
	"github.com/bounan/Bounan.Matcher/internal/config"
	"github.com/bounan/Bounan.Matcher/internal/hls"
	"github.com/bounan/Bounan.Matcher/internal/loanapi"
	"github.com/bounan/Bounan.Matcher/internal/logging"
	"github.com/bounan/Bounan.Matcher/internal/matcher"
	"github.com/bounan/Bounan.Matcher/internal/recognizer"
	"github.com/bounan/Bounan.Matcher/internal/scene"
)

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "run SERIES_ID DUB EPISODE [EPISODE...]",
		Short: "Match one request immediately, bypassing the work queue",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			keys, err := parseKeys(args)
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			controller := buildController(cfg, logger)
			if err := controller.ProcessRequest(ctx, keys, force); err != nil {
				return fmt.Errorf("process request: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d episode(s) for series %d (%s)\n",
				len(keys), keys[0].SeriesID, keys[0].Dub)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reprocess every available episode, up to the safety cap")
	return cmd
}

func buildController(cfg *config.Config, logger *slog.Logger) *matcher.Controller {
	queue := animan.NewClient(cfg)
	catalog := loanapi.NewClient(cfg)
	manifests := hls.NewClient(time.Duration(cfg.Download.RequestTimeout) * time.Second)
	merger := audio.NewDownloader(cfg)
	rec := recognizer.NewCLI(
		recognizer.WithBinary(cfg.Recognizer.Binary),
		recognizer.WithSeriesWindow(cfg.Matching.EpisodesToMatch),
		recognizer.WithTimeout(time.Duration(cfg.Recognizer.TimeoutSeconds)*time.Second),
	)
	return matcher.NewController(cfg, catalog, queue, manifests, merger, rec, logger)
}

func parseKeys(args []string) ([]scene.VideoKey, error) {
	seriesID, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("series id %q is not a number", args[0])
	}
	dub := args[1]

	keys := make([]scene.VideoKey, 0, len(args)-2)
	for _, raw := range args[2:] {
		episode, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("episode %q is not a number", raw)
		}
		keys = append(keys, scene.VideoKey{SeriesID: seriesID, Dub: dub, Episode: episode})
	}
	return keys, nil
}
