package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"accentcoach/internal/bootstrap"
	"accentcoach/internal/web"
	"accentcoach/internal/wordbank"
)

const shutdownGracePeriod = 10 * time.Second

func run(ctx context.Context) error {
	runtime, err := bootstrap.Load(nil)
	if err != nil {
		return fmt.Errorf("load runtime: %w", err)
	}
	defer runtime.Close()

	logger := runtime.Logger
	server := web.NewServer(wordbank.DefaultItems(), runtime.NewController, logger.With("component", "web"))
	httpSrv := &http.Server{
		Addr:              runtime.Config.Web.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting web server", "addr", httpSrv.Addr, "model", runtime.Config.Gemini.Model)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	// Websocket sessions are hijacked and outlive Shutdown.
	if err := server.Close(shutdownCtx); err != nil {
		return fmt.Errorf("close sessions: %w", err)
	}
	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("web server stopped")
	return nil
}

func runMain(stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(stderr, "accentcoach-web: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(os.Stderr))
}
