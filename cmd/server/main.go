package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/hrsuite/approval-engine/internal/application/dispatcher"
	"github.com/hrsuite/approval-engine/internal/application/engine"
	"github.com/hrsuite/approval-engine/internal/application/service"
	"github.com/hrsuite/approval-engine/internal/config"
	"github.com/hrsuite/approval-engine/internal/domain/workflow"
	"github.com/hrsuite/approval-engine/internal/export"
	"github.com/hrsuite/approval-engine/internal/infrastructure/persistence/repository"
	"github.com/hrsuite/approval-engine/internal/infrastructure/persistence/sqlite"
	httpserver "github.com/hrsuite/approval-engine/internal/interfaces/http"
	"github.com/hrsuite/approval-engine/internal/worker"
	"github.com/hrsuite/approval-engine/pkg/database"
	"github.com/hrsuite/approval-engine/pkg/utils"
)

func main() {
	// Local overrides from .env, ignored when absent
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting approval engine",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Database and migrations
	db, err := database.Open(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.Run(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Persistence
	txManager := sqlite.NewDB(db.DB, logger)
	docRepo := repository.NewDocumentRepository(db.DB, logger)
	historyRepo := repository.NewHistoryRepository(db.DB, logger)

	// Event dispatcher
	logAdapter := utils.NewSugarAdapter(logger)
	eventDispatcher := dispatcher.NewDispatcher(dispatcher.WithLogger(logAdapter))
	defer eventDispatcher.Close()

	// Workflow engine
	var tableOpts []workflow.Option
	if cfg.Workflow.StrictParallelCompletion {
		tableOpts = append(tableOpts, workflow.WithStrictParallelCompletion())
	}
	wfEngine := engine.New(docRepo, historyRepo, txManager, logger,
		engine.WithTable(workflow.NewTable(tableOpts...)),
		engine.WithDispatcher(eventDispatcher),
		engine.WithMaxRetries(cfg.Workflow.MaxRetries),
	)

	documentService := service.NewDocumentService(docRepo, historyRepo, txManager, wfEngine, logAdapter)

	// Background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerManager := worker.NewManager(logger)
	if cfg.Escalation.Enabled {
		sweeper := worker.NewEscalationSweeper(worker.EscalationSweeperConfig{
			SweepInterval: cfg.Escalation.SweepInterval,
			BatchSize:     cfg.Escalation.BatchSize,
		}, docRepo, eventDispatcher, logger)
		workerManager.Register(sweeper)
	}
	if err := workerManager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	// HTTP server
	registerWriter := export.NewRegisterWriter(logger)
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, documentService, registerWriter, logAdapter)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(ctx)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	cancel()

	if err := workerManager.StopAll(); err != nil {
		logger.Error("Worker shutdown error", zap.Error(err))
	}
	if err := server.Stop(); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
