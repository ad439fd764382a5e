package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/apod-archiver/internal/api"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serves health, metrics and read-only archive endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			logger := appInstance.Logger()
			apiServer := appInstance.Server()

			go func() {
				if err := publishIndex(ctx, appInstance, apiServer); err != nil {
					logger.Error("index load failed", zap.Error(err))
				}
			}()

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", appInstance.Config().Server.Port),
				Handler:           apiServer.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				logger.Info("http server started", zap.Int("port", appInstance.Config().Server.Port))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("http shutdown: %w", err)
			}
			logger.Info("http server stopped")
			return nil
		},
	}
}

// publishIndex loads the archive index and marks the server ready. With the
// index disabled the server is ready as soon as the load returns.
func publishIndex(ctx context.Context, appInstance App, apiServer *api.Server) error {
	idx, err := appInstance.BuildIndex(ctx)
	if err != nil {
		return err
	}
	if idx == nil {
		apiServer.MarkReady()
		return nil
	}
	apiServer.SetIndex(idx)
	return nil
}
