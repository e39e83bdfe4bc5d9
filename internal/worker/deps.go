package worker

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"invoicepdf/internal/pkg/logger"
	"invoicepdf/internal/ports"
	"invoicepdf/internal/worker/processor"
)

type Deps struct {
	Pool      *pgxpool.Pool
	RDB       *redis.Client
	SP        ports.StorageProvider
	ChromeURL string
	QueueName string

	// Concurrency is the number of dispatcher workers. Zero means 1.
	Concurrency int

	// DisableAlerts keeps terminal-failure notifications local to the log
	// instead of publishing them to Redis. Useful in dev environments with
	// nothing subscribed.
	DisableAlerts bool

	Retry         processor.RetryPolicy
	RenderTimeout time.Duration
	Log           *logger.Logger
}
