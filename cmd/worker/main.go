package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/thunderstore/registry/cmd/registry/container"
	"github.com/thunderstore/registry/cmd/worker/worker"
	"github.com/thunderstore/registry/common/bootstrap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bootstrap service components
	components, err := bootstrap.Setup(ctx, "worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup service: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	components.Logger.Info("worker starting")

	// The worker shares the registry's service container; only the entry
	// point differs.
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		components.Logger.Error("failed to initialize service container", "error", err)
		os.Exit(1)
	}

	registryWorker := worker.New(
		components.Config,
		components.Queue,
		serviceContainer.Coordinator,
		serviceContainer.CacheBuilder,
		serviceContainer.Broker,
		serviceContainer.BlobStore,
		components.Logger,
	)

	// Start worker in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := registryWorker.Start(ctx); err != nil && err != context.Canceled {
			errChan <- fmt.Errorf("worker error: %w", err)
		}
	}()

	components.Logger.Info("worker started successfully")

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		components.Logger.Error("worker failed", "error", err)
		os.Exit(1)
	case sig := <-sigChan:
		components.Logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}

	components.Logger.Info("worker shutting down gracefully")
}
