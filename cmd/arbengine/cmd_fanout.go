package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/arbengine/internal/arb/fanout"
)

func fanoutCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "fanout",
		Short: "Poll every configured venue for ticker and order book data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFanout(cmd.Context(), *configPath)
		},
	}
}

func runFanout(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	venues := buildVenues(cfg)
	c := buildCache(cfg)
	defer c.Close()
	m := buildMetrics()

	f := fanout.New(fanout.Config{
		TickerInterval:       cfg.TickerPollInterval,
		BookInterval:         cfg.BookPollInterval,
		MonitorInterval:      cfg.ConnectionMonitorInterval,
		StaleThreshold:       cfg.StaleThreshold,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
	}, c, m, newLogger(), venues, pairsFromConfig(cfg))

	log.Info().Int("venues", len(venues)).Msg("fanout running")
	f.Run(ctx)
	return nil
}
