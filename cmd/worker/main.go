// Package main runs the background worker extending materialization of
// never-ending recurring series.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/PalisadoesFoundation/talawa-api-sub014/config"
	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/events"
	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/recurrence"
	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/worker"
	"github.com/PalisadoesFoundation/talawa-api-sub014/pkg/database"
	"github.com/PalisadoesFoundation/talawa-api-sub014/pkg/queue"
	"github.com/PalisadoesFoundation/talawa-api-sub014/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	expander := recurrence.NewExpander(cfg.Recurrence)
	eventRepo := events.NewRepository(pool)
	generator := events.NewGenerator(eventRepo, expander, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewHorizonProcessor(eventRepo, generator, expander, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	go processor.RunScanner(workerCtx, time.Hour)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
