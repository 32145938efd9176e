// Package cli implements the authcore command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/formwise/authcore"
)

const appName = "authcore"

type rootOptions struct {
	logLevel string
	pretty   bool
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Authentication and authorization service",
		Long: `authcore issues and rotates session tokens, manages accounts and roles,
and answers permission checks over HTTP.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL (trace, debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "human readable console logs")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newLoadtestCmd(),
	)
	return cmd
}

// setup loads the configuration and builds the process logger.
func (o *rootOptions) setup(ctx context.Context) (authcore.Config, zerolog.Logger, error) {
	cfg, err := authcore.LoadConfig(ctx)
	if err != nil {
		return authcore.Config{}, zerolog.Nop(), fmt.Errorf("config: %w", err)
	}

	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return authcore.Config{}, zerolog.Nop(), fmt.Errorf("log level %q: %w", level, err)
	}

	var log zerolog.Logger
	if o.pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stderr)
	}
	log = log.Level(lvl).With().Timestamp().Str("service", appName).Logger()
	return cfg, log, nil
}

func banner() {
	figure.NewFigure(appName, "cybermedium", true).Print()
	fmt.Println()
}
