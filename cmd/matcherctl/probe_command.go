package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bounan/Bounan.Matcher/internal/hls"
	"github.com/bounan/Bounan.Matcher/internal/loanapi"
	"github.com/bounan/Bounan.Matcher/internal/scene"
)

func newProbeCommand(cmdCtx *commandContext) *cobra.Command {
	var withDurations bool

	cmd := &cobra.Command{
		Use:   "probe SERIES_ID DUB",
		Short: "Inspect the episode catalog for one series and dub",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			seriesID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("series id %q is not a number", args[0])
			}
			dub := args[1]

			ctx, cancel := signalContext(cmd)
			defer cancel()

			catalog := loanapi.NewClient(cfg)
			episodes, err := catalog.Episodes(ctx, seriesID, dub)
			if err != nil {
				return err
			}
			if len(episodes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No episodes available.")
				return nil
			}

			manifests := hls.NewClient(time.Duration(cfg.Download.RequestTimeout) * time.Second)
			rows := make([][]string, 0, len(episodes))
			for _, episode := range episodes {
				key := scene.VideoKey{SeriesID: seriesID, Dub: dub, Episode: episode}
				row := []string{strconv.Itoa(episode), "-", "-", "-"}

				video, err := catalog.Video(ctx, key)
				if err != nil {
					row[3] = "manifest unavailable"
					rows = append(rows, row)
					continue
				}
				row[1] = qualitySummary(video)
				url, ok := video.BestPlaylist()
				if !ok {
					row[3] = "no playlists"
					rows = append(rows, row)
					continue
				}
				if withDurations {
					playlist, err := manifests.Fetch(ctx, url)
					if err != nil {
						row[3] = "playlist fetch failed"
						rows = append(rows, row)
						continue
					}
					row[2] = fmt.Sprintf("%.0fs", playlist.TotalDuration())
				}
				row[3] = "ok"
				rows = append(rows, row)
			}

			headers := []string{"EPISODE", "QUALITIES", "DURATION", "STATUS"}
			out := cmd.OutOrStdout()
			if isTerminal() {
				fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignRight, alignLeft, alignRight, alignLeft}))
			} else {
				for _, row := range rows {
					fmt.Fprintln(out, strings.Join(row, "\t"))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withDurations, "durations", false, "Fetch each playlist and report its total duration")
	return cmd
}

func qualitySummary(video loanapi.Video) string {
	labels := make([]string, 0, len(video.Playlists))
	for label := range video.Playlists {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return strings.Join(labels, ",")
}
