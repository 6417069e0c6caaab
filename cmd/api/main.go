package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/installment-service/internal/config"
	"github.com/Dan9191/installment-service/internal/handler"
	"github.com/Dan9191/installment-service/internal/lock"
	"github.com/Dan9191/installment-service/internal/metrics"
	"github.com/Dan9191/installment-service/internal/repository"
	"github.com/Dan9191/installment-service/internal/scheduler"
	"github.com/Dan9191/installment-service/internal/service"
	"github.com/Dan9191/installment-service/internal/utils/email"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	if err := repository.Migrate(db, cfg.MigrationsPath, logger); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize layers
	m := metrics.NewMetrics()
	repo := repository.NewRepository(db)
	svc := service.NewService(repo, logger, cfg).WithMetrics(m)
	h := handler.NewHandler(svc, logger)
	sender := email.NewSender(cfg, logger)

	// Daily installment jobs
	jobs, err := scheduler.New(cfg, svc, sender, logger)
	if err != nil {
		logger.Fatalf("Failed to configure scheduler: %v", err)
	}
	jobs.WithMetrics(m)
	if cfg.RedisAddr != "" {
		client, err := lock.Connect(context.Background(), cfg.RedisAddr)
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer client.Close()
		jobs.WithLocker(lock.NewRedisLocker(client, "installments"))
	} else {
		logger.Warn("REDIS_ADDR not set, scheduled jobs run without a replica lock")
	}
	jobs.Start()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.NewRouter(h, cfg, m, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	select {
	case <-jobs.Stop().Done():
	case <-ctx.Done():
		logger.Warn("Scheduled jobs still running at exit")
	}
	logger.Info("Server stopped")
}
