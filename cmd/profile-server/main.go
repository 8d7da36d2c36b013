// Package main provides the profile registry server and its maintenance
// commands.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/csfprofile/profile-registry/pkg/config"
	"github.com/csfprofile/profile-registry/pkg/database"
	"github.com/csfprofile/profile-registry/pkg/framework"
	"github.com/csfprofile/profile-registry/pkg/server"
)

var version = "dev"

func main() {
	// Initialize glog for fatal startup errors.
	_ = flag.Set("logtostderr", "true")

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "profile-server",
		Short: "Cybersecurity profile assessment registry",
		Long: `profile-server stores current-state and target-state assessments of
framework subcategories, records every field-level edit in a change log and
renders subcategory codes from the framework reference tables.`,
		Version:      version,
		SilenceUsage: true,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newServeCmd(), newMigrateCmd(), newSeedCmd(), newHealthcheckCmd())
	return root
}

// bootstrap loads the configuration, sets the default logger and opens the
// database.
func bootstrap(cmd *cobra.Command) (*config.Config, *gorm.DB, *slog.Logger) {
	cfg, err := config.Load("", cmd.Flags())
	if err != nil {
		glog.Fatalf("Failed to load config: %v", err)
	}

	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}
	return cfg, db, logger
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg, db, logger := bootstrap(cmd)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, err := server.New(cfg, db, logger)
			if err != nil {
				glog.Fatalf("Failed to configure server: %v", err)
			}
			if err := srv.Init(ctx); err != nil {
				glog.Fatalf("Failed to initialize server: %v", err)
			}

			logger.Info("starting profile registry",
				"version", version,
				"listen", cfg.Server.Listen,
				"driver", cfg.Database.Driver,
				"identityMode", cfg.Identity.Mode,
				"cache", cfg.Cache.Enabled)

			if err := srv.Run(ctx); err != nil {
				glog.Fatalf("Server error: %v", err)
			}
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, logger := bootstrap(cmd)
			return database.Migrate(cmd.Context(), db, logger, server.Models()...)
		},
	}
}

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load framework reference data from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, logger := bootstrap(cmd)
			if err := database.Migrate(cmd.Context(), db, logger, server.Models()...); err != nil {
				return err
			}
			return server.SeedFramework(cmd.Context(), framework.NewStore(db), file, logger)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "framework.yaml", "framework reference YAML")
	return cmd
}

// newHealthcheckCmd probes a URL and exits non-zero unless it answers 2xx.
// It is meant for container health checks.
func newHealthcheckCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "healthcheck [url]",
		Short: "Probe a health endpoint",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := "http://localhost:8080/readyz"
			if len(args) == 1 {
				url = args[0]
			}

			client := &http.Client{Timeout: timeout}
			resp, err := client.Get(url)
			if err != nil {
				return fmt.Errorf("healthcheck failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return fmt.Errorf("healthcheck failed: status %d", resp.StatusCode)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}
