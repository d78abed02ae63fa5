package config

import (
	"pdf-extract-service/internal/domain"
	"pdf-extract-service/internal/repository"
	"pdf-extract-service/internal/service"
	"pdf-extract-service/internal/task"
	"pdf-extract-service/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config         domain.Config
	Logger         domain.Logger
	SupabaseClient domain.SupabaseClient
	Repository     domain.ExtractRepository
	Storage        domain.Storage
	Processor      *service.PDFProcessor
	ExtractService *service.ExtractService
	Queue          *task.Queue
	Registry       *task.CancelRegistry
	Runner         *task.Runner
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	config := NewConfig()
	appLogger := logger.NewLogger(config.GetLogLevel())

	supabaseClient := repository.NewSupabaseClient(config, appLogger)
	if err := supabaseClient.Initialize(); err != nil {
		// Keep booting: /health reports degraded until Supabase is reachable.
		appLogger.Warn("Supabase client not initialized", "error", err)
	}

	extractRepo := repository.NewSupabaseExtractRepository(supabaseClient, appLogger)
	storage := service.NewStorageService(config, appLogger)
	processor := service.NewPDFProcessor(appLogger)

	queue := task.NewQueue(config.GetQueueSize(), appLogger)
	registry := task.NewCancelRegistry()

	extractService := service.NewExtractService(
		extractRepo,
		storage,
		processor,
		queue,
		registry,
		config,
		appLogger,
	)

	runner := task.NewRunner(queue, task.RunnerConfig{
		WorkerCount: config.GetWorkerCount(),
	}, appLogger)

	return &Container{
		Config:         config,
		Logger:         appLogger,
		SupabaseClient: supabaseClient,
		Repository:     extractRepo,
		Storage:        storage,
		Processor:      processor,
		ExtractService: extractService,
		Queue:          queue,
		Registry:       registry,
		Runner:         runner,
	}
}
