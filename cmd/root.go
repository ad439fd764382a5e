// Package cmd implements the apodarchiver command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/apod-archiver/internal/api"
	"github.com/JakeFAU/apod-archiver/internal/app"
	"github.com/JakeFAU/apod-archiver/internal/archive"
	"github.com/JakeFAU/apod-archiver/internal/config"
	"github.com/JakeFAU/apod-archiver/internal/scraper"
	"github.com/JakeFAU/apod-archiver/internal/thumbnail"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the services commands use.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	Runner() *scraper.Runner
	Thumbnails() *thumbnail.Deriver
	Server() *api.Server
	BuildIndex(ctx context.Context) (*archive.Index, error)
	Today() time.Time
}

// newApp is the application factory. Tests replace it to inject fakes.
var newApp = func(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return app.NewApp(ctx, cfg)
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "apodarchiver",
		Short: "Archives the Astronomy Picture of the Day.",
		Long: `apodarchiver walks the Astronomy Picture of the Day archive, extracts each
entry's title, description, credits and image, stores them, and derives a
square thumbnail for every picture.`,
		SilenceUsage: true,

		// Builds the application before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newEntryCmd())
	cmd.AddCommand(newThumbnailCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "apodarchiver: %v\n", err)
		stop()
		os.Exit(1)
	}
}
