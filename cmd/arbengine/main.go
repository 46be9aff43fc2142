package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "arbengine"
	version = "v0.1.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Execute builds the root command tree and runs it against ctx.
func Execute(ctx context.Context) error {
	var configPath string

	root := &cobra.Command{
		Use:     appName,
		Short:   "Multi-venue cryptocurrency arbitrage engine",
		Version: version,
		Run:     runDefaultEntry,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to engine config YAML")

	root.AddCommand(runCmd(&configPath))
	root.AddCommand(fanoutCmd(&configPath))
	root.AddCommand(scanCmd(&configPath))
	root.AddCommand(healthCmd(&configPath))

	log.Info().Str("version", version).Msg("arbengine starting")
	return root.ExecuteContext(ctx)
}

// runDefaultEntry detects whether stdin is an interactive terminal. In a
// TTY it prints the command help and does not start the engine; in a
// non-interactive environment it prints usage and exits rather than
// guessing intent.
func runDefaultEntry(cmd *cobra.Command, args []string) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "non-interactive environment: use a subcommand")
		fmt.Fprintln(os.Stderr, "  arbengine run --config config.yaml")
		fmt.Fprintln(os.Stderr, "  arbengine fanout --config config.yaml")
		fmt.Fprintln(os.Stderr, "  arbengine health --config config.yaml")
		os.Exit(2)
	}
	cmd.Help()
}
