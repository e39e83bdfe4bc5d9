// Package queue is the Redis work queue for render jobs. Immediate work
// sits on a list; retries waiting out their backoff sit on a sorted set
// scored by due time and are moved onto the list when due.
package queue

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisQueue struct {
	rdb       *redis.Client
	queueName string
	delayName string
}

func NewRedisQueue(rdb *redis.Client, queueName string) *RedisQueue {
	return &RedisQueue{
		rdb:       rdb,
		queueName: queueName,
		delayName: queueName + ":delayed",
	}
}

// Push enqueues a job id for immediate processing.
func (q *RedisQueue) Push(ctx context.Context, jobID string) error {
	return q.rdb.LPush(ctx, q.queueName, jobID).Err()
}

// Pop blocks up to timeout for the next job id (BRPOP). Returns "" when
// the queue stayed empty, which is not an error.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

// PushDelayed schedules a job id to become available after delay.
func (q *RedisQueue) PushDelayed(ctx context.Context, jobID string, delay time.Duration) error {
	due := float64(time.Now().Add(delay).UnixMilli())
	return q.rdb.ZAdd(ctx, q.delayName, redis.Z{Score: due, Member: jobID}).Err()
}

// MoveDue shifts every delayed job whose due time has passed onto the
// immediate queue. Removal goes through ZRem first so two movers racing
// over the same member enqueue it once.
func (q *RedisQueue) MoveDue(ctx context.Context) (int, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	ids, err := q.rdb.ZRangeByScore(ctx, q.delayName, &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, id := range ids {
		removed, err := q.rdb.ZRem(ctx, q.delayName, id).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, q.queueName, id).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}
