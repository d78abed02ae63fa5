package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdf-extract-service/internal/config"
	"pdf-extract-service/internal/handler"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	// Wiring
	container := config.NewContainer()

	// Worker pool first, so recovered jobs have someone to run them
	container.Runner.Start()
	if err := container.ExtractService.RecoverUnfinished(); err != nil {
		container.Logger.Warn("recovery of unfinished extractions failed", "error", err)
	}

	// Router
	router := handler.NewRouter(container)

	server := &http.Server{
		Addr:         ":" + container.Config.GetServerPort(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	// Run server
	go func() {
		container.Logger.Info("Server listening", "address", server.Addr,
			"workers", container.Config.GetWorkerCount())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Error("Server failed to start", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	container.Logger.Info("Shutting down server...")

	// Stop accepting requests, then drain the worker pool. Interrupted jobs
	// are requeued on the next boot.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		container.Logger.Warn("HTTP shutdown did not finish cleanly", "error", err)
	}

	container.Runner.Stop()
	container.Queue.Close()

	container.Logger.Info("Server exited")
}
