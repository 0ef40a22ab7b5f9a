package main

import (
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/fabriqs/wedding-pix/config"
	"github.com/fabriqs/wedding-pix/logger"
)

var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "weddingpix",
		Short:         "PIX checkout for the wedding gift registry",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "weddingpix.toml", "TOML config file (optional)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(checkoutCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and prepares logging and error reporting. The
// returned func flushes pending Sentry events.
func setup() (*config.Config, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(cfg.LogLevel, cfg.IsProduction())

	if cfg.Sentry.DSN == "" {
		return cfg, func() {}, nil
	}
	err = sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: cfg.Environment,
		Release:     "weddingpix@" + Version,
	})
	if err != nil {
		logger.Error(err, "Failed to initialize Sentry", nil)
		return cfg, func() {}, nil
	}
	logger.EnableSentry()
	return cfg, func() { sentry.Flush(2 * time.Second) }, nil
}
