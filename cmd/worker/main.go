// Package main runs the settlement worker: the periodic sweep plus the
// per-pair settlement runs it enqueues.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"menupay/internal/bootstrap"
	"menupay/internal/config"
	"menupay/internal/jobs"
	"menupay/internal/logger"

	"github.com/hibiken/asynq"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	if err := logger.Init(cfg.IsProduction()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	c, err := bootstrap.New(cfg)
	if err != nil {
		logger.SW("error", err).Fatal("failed to initialize dependencies")
	}
	defer c.Close()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	client := asynq.NewClient(redisOpt)
	defer client.Close()

	h := jobs.NewHandlers(c.Settlement, client, time.Hour)
	mux := asynq.NewServeMux()
	h.Register(mux)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{jobs.QueueSettlement: 1},
		Logger:      logger.S(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.SW("task", task.Type(), "error", err).Error("task failed")
		}),
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   logger.S(),
	})
	entryID, err := jobs.RegisterSweep(scheduler, cfg.SweepSpec)
	if err != nil {
		logger.SW("error", err).Fatal("failed to schedule settlement sweep")
	}
	logger.SW("entry_id", entryID, "spec", cfg.SweepSpec).Info("settlement sweep scheduled")

	if err := srv.Start(mux); err != nil {
		logger.SW("error", err).Fatal("failed to start worker")
	}
	if err := scheduler.Start(); err != nil {
		srv.Shutdown()
		logger.SW("error", err).Fatal("failed to start scheduler")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.L().Info("shutting down worker")
	scheduler.Shutdown()
	srv.Shutdown()
}
