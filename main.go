package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"melspec/cmd"
	"melspec/internal/log"
	"melspec/internal/observe"
	"melspec/pkg/build"
)

func main() {
	if err := build.Initialize(); err != nil {
		log.Debugf("development build: %v", err)
	}

	provider, err := observe.InitProvider(observe.ProviderConfig{
		ServiceName:    build.Get().Name,
		ServiceVersion: build.Get().Version,
	})
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	runErr := cmd.Execute(ctx, provider)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.Warnf("telemetry shutdown: %v", err)
	}
	cancel()

	if runErr != nil && !cmd.IsCancelled(runErr) {
		log.Errorf("%v", runErr)
		os.Exit(1)
	}
}
