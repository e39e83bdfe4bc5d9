package tokens

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreIssue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	t.Run("returns opaque high-entropy token", func(t *testing.T) {
		token, err := store.Issue(ctx, "/data/pdfs/a.pdf", time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(token) < 40 {
			t.Errorf("token too short for 32 random bytes: %q", token)
		}
	})

	t.Run("tokens are unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			token, err := store.Issue(ctx, "/data/pdfs/a.pdf", time.Minute)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if seen[token] {
				t.Fatalf("duplicate token issued: %q", token)
			}
			seen[token] = true
		}
	})
}

func TestMemoryStoreResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("exactly once", func(t *testing.T) {
		store := NewMemoryStore()
		token, err := store.Issue(ctx, "/data/pdfs/inv.pdf", time.Minute)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}

		path, err := store.Resolve(ctx, token)
		if err != nil {
			t.Fatalf("first resolve: %v", err)
		}
		if path != "/data/pdfs/inv.pdf" {
			t.Errorf("expected stored path, got %q", path)
		}

		if _, err := store.Resolve(ctx, token); err != ErrNotFound {
			t.Errorf("second resolve: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		store := NewMemoryStore()
		if _, err := store.Resolve(ctx, "no-such-token"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("expired token never resolves", func(t *testing.T) {
		now := time.Now()
		store := NewMemoryStoreWithClock(func() time.Time { return now })

		token, err := store.Issue(ctx, "/data/pdfs/inv.pdf", 0)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if _, err := store.Resolve(ctx, token); err != ErrNotFound {
			t.Errorf("zero-ttl token resolved: %v", err)
		}
	})

	t.Run("resolves inside ttl then not after", func(t *testing.T) {
		now := time.Now()
		store := NewMemoryStoreWithClock(func() time.Time { return now })

		token, err := store.Issue(ctx, "/data/pdfs/inv.pdf", time.Minute)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}

		token2, err := store.Issue(ctx, "/data/pdfs/other.pdf", time.Minute)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}

		if _, err := store.Resolve(ctx, token); err != nil {
			t.Fatalf("resolve within ttl: %v", err)
		}

		now = now.Add(2 * time.Minute)
		if _, err := store.Resolve(ctx, token2); err != ErrNotFound {
			t.Errorf("expected ErrNotFound after expiry, got %v", err)
		}
	})

	t.Run("double redemption race yields one winner", func(t *testing.T) {
		store := NewMemoryStore()
		token, err := store.Issue(ctx, "/data/pdfs/inv.pdf", time.Minute)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}

		const callers = 16
		var wg sync.WaitGroup
		wins := make(chan string, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if path, err := store.Resolve(ctx, token); err == nil {
					wins <- path
				}
			}()
		}
		wg.Wait()
		close(wins)

		count := 0
		for range wins {
			count++
		}
		if count != 1 {
			t.Errorf("expected exactly 1 successful redemption, got %d", count)
		}
	})
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemoryStoreWithClock(func() time.Time { return now })

	for i := 0; i < 10; i++ {
		if _, err := store.Issue(ctx, "/data/pdfs/old.pdf", time.Second); err != nil {
			t.Fatalf("issue: %v", err)
		}
	}

	now = now.Add(time.Hour)
	if _, err := store.Issue(ctx, "/data/pdfs/new.pdf", time.Minute); err != nil {
		t.Fatalf("issue: %v", err)
	}

	store.mu.Lock()
	remaining := len(store.entries)
	store.mu.Unlock()
	if remaining != 1 {
		t.Errorf("expected expired entries swept on issue, %d remain", remaining)
	}
}
