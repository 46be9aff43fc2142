package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func healthCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check every configured venue adapter's reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd.Context(), *configPath)
		},
	}
}

func runHealth(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	venues := buildVenues(cfg)
	if len(venues) == 0 {
		fmt.Println("no venues enabled")
		return nil
	}

	for name, adapter := range venues {
		err := adapter.Health(ctx)
		status := "ok"
		if err != nil {
			status = fmt.Sprintf("error: %v", err)
		}
		fmt.Printf("%-10s %s\n", name, status)
	}
	return nil
}
