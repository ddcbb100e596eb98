package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wisdom-oss/service-water-usage-history/internal/config"
	httptransport "github.com/wisdom-oss/service-water-usage-history/internal/transport/http"
	"github.com/wisdom-oss/service-water-usage-history/pkg/logger"
	"github.com/wisdom-oss/service-water-usage-history/pkg/otel"
)

const (
	shutdownTimeoutSeconds = 10
	startupTimeoutSeconds  = 30
)

func main() {
	cfg := config.MustLoad()

	startupCtx, startupCancel := context.WithTimeout(context.Background(), startupTimeoutSeconds*time.Second)
	srv, err := httptransport.NewServer(startupCtx, cfg)
	startupCancel()
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx := context.Background()

	serverErrChan := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting http server",
			slog.String("addr", cfg.Server.Addr),
			slog.String("mode", cfg.Server.Mode),
		)
		if listenErr := srv.ListenAndServe(); listenErr != nil &&
			!errors.Is(listenErr, http.ErrServerClosed) {
			serverErrChan <- listenErr
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.InfoContext(ctx, "shutting down server")
	case serverErr := <-serverErrChan:
		logger.ErrorContext(ctx, "server error, shutting down", logger.Err(serverErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		shutdownTimeoutSeconds*time.Second,
	)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.ErrorContext(ctx, "server forced to shutdown", logger.Err(shutdownErr))
	} else {
		logger.InfoContext(ctx, "server stopped gracefully")
	}

	if shutdownErr := otel.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.ErrorContext(ctx, "failed to shutdown tracer provider", logger.Err(shutdownErr))
	}
}
