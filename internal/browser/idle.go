package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// networkTracker counts in-flight requests from DevTools network events.
// The page is quiescent once the count has been zero for a full window,
// which is the networkidle0 behavior the render sequence relies on.
type networkTracker struct {
	mu           sync.Mutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
}

func trackNetworkActivity(ctx context.Context) *networkTracker {
	t := &networkTracker{
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: time.Now(),
	}
	chromedp.ListenTarget(ctx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			t.mark(e.RequestID, true)
		case *network.EventLoadingFinished:
			t.mark(e.RequestID, false)
		case *network.EventLoadingFailed:
			t.mark(e.RequestID, false)
		}
	})
	return t
}

func (t *networkTracker) mark(id network.RequestID, start bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if start {
		t.inflight[id] = struct{}{}
	} else {
		delete(t.inflight, id)
	}
	t.lastActivity = time.Now()
}

func (t *networkTracker) quietSince() (int, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight), t.lastActivity
}

// waitQuiescent blocks until no request has been in flight for window.
// The surrounding run context's deadline is the only bound; hitting it
// classifies the attempt as a render timeout.
func (t *networkTracker) waitQuiescent(window time.Duration) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				inflight, last := t.quietSince()
				if inflight == 0 && time.Since(last) >= window {
					return nil
				}
			}
		}
	}
}
