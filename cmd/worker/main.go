package main

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"invoicepdf/internal/pkg/logger"
	"invoicepdf/internal/pkg/shutdown"
	"invoicepdf/internal/storage"
	"invoicepdf/internal/worker"
	"invoicepdf/internal/worker/processor"
	"invoicepdf/internal/worker/util"
)

func main() {
	_ = godotenv.Load()

	log := logger.New(logger.Config{
		Level:       util.Env("LOG_LEVEL", "info"),
		Format:      util.Env("LOG_FORMAT", "json"),
		ServiceName: "invoicepdf-worker",
	})

	dbURL := util.MustEnv("DATABASE_URL")
	redisAddr := util.MustEnv("REDIS_ADDR")
	chromeURL := util.Env("CHROME_URL", "http://chrome:9222")
	queueName := util.Env("JOB_QUEUE_NAME", "invoicepdf:jobs")
	concurrency := intEnv("WORKER_CONCURRENCY", 2)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.LogFatal("failed to ping Redis", err)
	}

	sp, err := storage.NewProvider()
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}

	shutdownMgr := shutdown.NewManager(log, 30*time.Second)
	shutdownMgr.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- worker.Run(runCtx, worker.Deps{
			Pool:          pool,
			RDB:           rdb,
			SP:            sp,
			ChromeURL:     chromeURL,
			QueueName:     queueName,
			Concurrency:   concurrency,
			DisableAlerts: !util.BoolEnv("FAILURE_ALERTS", true),
			Retry:         processor.DefaultRetryPolicy(),
			Log:           log,
		})
	}()

	shutdownMgr.Register("dispatcher", func(ctx context.Context) error {
		cancel()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	log.Info("invoice render worker started", "queue", queueName, "concurrency", concurrency)
	shutdownMgr.Wait()
}

func intEnv(key string, def int) int {
	v := util.Env(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
