// Package worker is the job dispatcher: a pool of loops consuming render
// job ids from the queue and driving each through the processor's state
// machine. Redelivery is expected (the queue is at-least-once); the
// processor's admission guard is what keeps a job single-flight.
package worker

import (
	"context"
	"sync"
	"time"

	"invoicepdf/internal/browser"
	"invoicepdf/internal/notify"
	apperrors "invoicepdf/internal/pkg/errors"
	"invoicepdf/internal/pkg/logger"
	"invoicepdf/internal/repositories"
	"invoicepdf/internal/worker/processor"
	"invoicepdf/internal/worker/queue"
)

const (
	popTimeout    = 5 * time.Second
	moverInterval = time.Second
)

func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	q := queue.NewRedisQueue(d.RDB, d.QueueName)

	var browserOpts []browser.Option
	if d.RenderTimeout > 0 {
		browserOpts = append(browserOpts, browser.WithRenderTimeout(d.RenderTimeout))
	}

	var notifier notify.Notifier = notify.NewRedisNotifier(d.RDB, "", log)
	if d.DisableAlerts {
		notifier = notify.NewLogNotifier(log)
	}

	p := processor.New(processor.Deps{
		Repo:     repositories.NewInvoiceRepository(d.Pool),
		Renderer: browser.NewChromeClient(d.ChromeURL, browserOpts...),
		Store:    d.SP,
		Queue:    q,
		Notifier: notifier,
		Retry:    d.Retry,
		Log:      log,
	})

	concurrency := d.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var wg sync.WaitGroup

	// Mover loop: drains due retries from the delay set back onto the
	// immediate queue.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(moverInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if moved, err := q.MoveDue(ctx); err != nil {
					if ctx.Err() == nil {
						log.Warn("delayed queue move failed", "error", err.Error())
					}
				} else if moved > 0 {
					log.Debug("retries re-enqueued", "count", moved)
				}
			}
		}
	}()

	log.Info("dispatcher started", "concurrency", concurrency, "queue", d.QueueName)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			wlog := log.WithFields(map[string]any{"worker": workerID})
			consumeLoop(ctx, q, p, wlog)
		}(i)
	}

	wg.Wait()
	log.Info("dispatcher stopped")
	return ctx.Err()
}

func consumeLoop(ctx context.Context, q *queue.RedisQueue, p *processor.Processor, log *logger.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobID, err := q.Pop(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("queue pop error, retrying", "error", err.Error())
			time.Sleep(time.Second)
			continue
		}
		if jobID == "" {
			continue
		}

		jobCtx := logger.ContextWithJobID(ctx, jobID)
		dispatch(jobCtx, p, jobID, log.WithJobID(jobID))
	}
}

// dispatch runs one job and absorbs everything it throws. A panicking or
// failing job must never take the consume loop down with it.
func dispatch(ctx context.Context, p *processor.Processor, jobID string, log *logger.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("job panicked", "panic", rec)
		}
	}()

	start := time.Now()
	err := p.Process(ctx, jobID)
	switch {
	case err == nil:
		log.Info("job completed", "duration_ms", time.Since(start).Milliseconds())
	case apperrors.Is(err, processor.ErrNotStartable):
		log.Debug("job skipped, not startable")
	default:
		log.Warn("job attempt ended in failure",
			"error", err.Error(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
