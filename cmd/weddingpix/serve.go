package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/fabriqs/wedding-pix/abacate"
	"github.com/fabriqs/wedding-pix/auth"
	"github.com/fabriqs/wedding-pix/config"
	"github.com/fabriqs/wedding-pix/locale"
	"github.com/fabriqs/wedding-pix/logger"
	"github.com/fabriqs/wedding-pix/notify"
	"github.com/fabriqs/wedding-pix/server"
	"github.com/fabriqs/wedding-pix/store"
)

func serveCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the payment backend (PIX provider proxy and webhooks)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, flush, err := setup()
			if err != nil {
				return err
			}
			defer flush()
			if port != "" {
				cfg.Server.Port = port
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

func runServe(cfg *config.Config) error {
	if cfg.Upstream.APIKey == "" {
		return errors.New("ABACATE_PAY_API_KEY is required to serve payments")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := store.Migrate(db, sqlDriver(cfg)); err != nil {
		return err
	}

	tr, err := locale.New()
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, server.Deps{
		Upstream: abacate.New(cfg.Upstream.BaseURL, cfg.Upstream.APIKey,
			abacate.WithTimeout(cfg.Upstream.Timeout.Duration)),
		Events: store.NewEventLog(db),
		Mailer: notify.New(cfg.Mail, tr, cfg.Locale),
		Tokens: auth.NewTokens(cfg.Admin.JWTSecret, auth.DefaultTTL),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down payment backend...", nil)
	case err := <-serverErr:
		logger.Error(err, "Server error occurred, initiating shutdown", nil)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "Server forced to shutdown", nil)
		return err
	}
	logger.Info("Payment backend exited gracefully", nil)
	return nil
}

// sqlDriver picks the SQL driver for data that needs a database. The redis and
// memory drivers only cover the checkout slot, so the backend falls back to
// sqlite for them.
func sqlDriver(cfg *config.Config) string {
	if cfg.Store.Driver == store.DriverPostgres {
		return store.DriverPostgres
	}
	return store.DriverSQLite
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.Store.DSN
	if dsn == "" {
		dsn = "weddingpix.db"
	}
	return store.Open(sqlDriver(cfg), dsn)
}
