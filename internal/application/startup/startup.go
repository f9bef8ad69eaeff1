// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pagecanvas/pagecanvas-go/internal/application/container"
	"github.com/pagecanvas/pagecanvas-go/internal/presentation/http/server"
	"github.com/pagecanvas/pagecanvas-go/pkg/config"
)

// Initialize performs the complete startup sequence and blocks until a
// shutdown signal arrives.
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	log.Println("Initializing PageCanvas server...")

	// Step 1: Load configuration
	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Step 2: Create dependency injection container (logger, database,
	// key-value store, resolver, registry, renderer, services)
	appContainer, err := container.NewContainer(settings)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	logger := appContainer.Logger
	logger.Startup().Info("Container initialization complete - switching to channeled logging")

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	// Step 3: Start the data-source registry (loads persisted sources,
	// schedules auto-refresh, resolves each source once)
	startRegistryTime := time.Now()
	if err := appContainer.Registry.Start(ctx); err != nil {
		return fmt.Errorf("failed to start data-source registry: %w", err)
	}
	logger.Startup().Info("Data-source registry started",
		"sources", len(appContainer.Registry.List()),
		"duration", time.Since(startRegistryTime))

	// Step 4: Start the monitor broadcaster
	go appContainer.Broadcaster.Run()
	logger.Startup().Info("Monitor broadcaster started")

	// Step 5: Start HTTP server
	httpServer := server.New(settings, appContainer)
	logger.Startup().Info("HTTP server initialized", "port", settings.Port)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+settings.Port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"port", settings.Port)

	// Wait for shutdown signal
	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()

	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	logger.Shutdown().Info("Closing services...")
	appContainer.Close()

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
