package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds graceful shutdown in [Run].
const ShutdownTimeout = 10 * time.Second

// Run serves every server until ctx is done or one of them fails, then
// shuts all of them down. It returns the first listen error, or nil after
// a clean shutdown.
func Run(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server failed, shutting down", slog.String("addr", srv.Addr), slog.Any("error", err))
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("forced shutdown", slog.String("addr", srv.Addr), slog.Any("error", err))
			}
		}
		return nil
	})

	return g.Wait()
}
