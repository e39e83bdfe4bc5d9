// Package notify delivers terminal-failure alerts. Delivery is
// fire-and-forget: a broken sink must never block or fail a job
// transition.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"invoicepdf/internal/pkg/logger"
)

type Notifier interface {
	NotifyFailure(jobID, detail string)
}

type failureEvent struct {
	JobID      string    `json:"job_id"`
	Detail     string    `json:"error_detail"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RedisNotifier logs the alert and publishes it on a Redis channel for
// whatever observer is subscribed. Publish errors are logged and dropped.
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
	log     *logger.Logger
}

func NewRedisNotifier(rdb *redis.Client, channel string, log *logger.Logger) *RedisNotifier {
	if channel == "" {
		channel = "invoicepdf:failures"
	}
	return &RedisNotifier{rdb: rdb, channel: channel, log: log.WithComponent("notify")}
}

func (n *RedisNotifier) NotifyFailure(jobID, detail string) {
	n.log.WithJobID(jobID).Error("render job failed permanently", "error_detail", detail)

	payload, err := json.Marshal(failureEvent{JobID: jobID, Detail: detail, OccurredAt: time.Now().UTC()})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.rdb.Publish(ctx, n.channel, payload).Err(); err != nil {
		n.log.WithJobID(jobID).Warn("failure alert publish dropped", "error", err.Error())
	}
}

// LogNotifier only logs, for setups without a subscriber and for tests.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.WithComponent("notify")}
}

func (n *LogNotifier) NotifyFailure(jobID, detail string) {
	n.log.WithJobID(jobID).Error("render job failed permanently", "error_detail", detail)
}
