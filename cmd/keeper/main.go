package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marianozunino/keeper/internal/app"
	"github.com/marianozunino/keeper/internal/config"
)

const shutdownTimeout = 10 * time.Second

func newRootCmd() *cobra.Command {
	var configPath, logLevel string

	cmd := &cobra.Command{
		Use:   "keeper",
		Short: "Keep pixeldrain files alive by refreshing their views",
		Long: `keeper lists the files of a pixeldrain account at startup and every day
at midnight UTC, and replays a view for every file that has not been viewed
for more than 30 days. The API key is read from API_KEY (or a .env file).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, logLevel)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file (default: $CONFIG_PATH)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn (warning), error")

	return cmd
}

// loadConfig applies the command line overrides on top of LoadConfig
func loadConfig(configPath, logLevel string) (*config.Config, error) {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.LogLevel = config.NormalizeLevel(logLevel)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	application, err := app.New(cfg, os.Stdout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application.Start(ctx)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
