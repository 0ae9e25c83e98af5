package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/go-github/v81/github"
)

// Budget throttles GitHub requests against the primary rate limit reported by
// the API and honours Retry-After cooldowns from secondary limits.
type Budget struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	cooldown  time.Time
	probed    bool
	now       func() time.Time
	changed   chan struct{}
}

func NewBudget() *Budget {
	return &Budget{
		remaining: 5000,
		reset:     time.Now().Add(time.Hour),
		now:       time.Now,
		changed:   make(chan struct{}),
	}
}

func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// Acquire blocks until n requests may be issued or ctx is done.
func (b *Budget) Acquire(ctx context.Context, n int) error {
	if ctx == nil {
		return fmt.Errorf("Acquire: nil context")
	}
	if n <= 0 {
		return fmt.Errorf("Acquire: n must be > 0 (got %d)", n)
	}
	if b == nil || b.now == nil || b.changed == nil {
		return fmt.Errorf("Acquire: budget not initialised (use NewBudget)")
	}
	for i := 0; i < n; i++ {
		if err := b.acquireOne(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (b *Budget) acquireOne(ctx context.Context) error {
	for {
		b.mu.Lock()
		now := b.now()
		changed := b.changed

		var until time.Time
		switch {
		case now.Before(b.cooldown):
			until = b.cooldown
		case b.remaining > 0:
			b.remaining--
			b.mu.Unlock()
			return nil
		case !now.Before(b.reset) && !b.probed:
			// The window has reset but no response has confirmed it yet: let a
			// single probe through and hold everything else until Observe.
			b.probed = true
			b.mu.Unlock()
			return nil
		case !now.Before(b.reset):
			// zero until: wait for Observe only
		default:
			until = b.reset
		}
		b.mu.Unlock()

		if err := wait(ctx, changed, until.Sub(now), !until.IsZero()); err != nil {
			return err
		}
	}
}

func wait(ctx context.Context, changed <-chan struct{}, d time.Duration, timed bool) error {
	var timeout <-chan time.Time
	if timed {
		if d < 0 {
			d = 0
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-changed:
	case <-timeout:
	}
	return nil
}

// Observe updates the budget from a GitHub response.
func (b *Budget) Observe(resp *github.Response) {
	if b == nil || b.now == nil || resp == nil || resp.Response == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	updated := false

	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			until := b.now().Add(time.Duration(seconds) * time.Second)
			if until.After(b.cooldown) {
				b.cooldown = until
				updated = true
			}
		}
	}

	// go-github leaves Rate zeroed when the headers are missing.
	if hasRateHeaders(resp.Header) {
		if resp.Rate.Remaining >= 0 && b.remaining != resp.Rate.Remaining {
			b.remaining = resp.Rate.Remaining
			updated = true
		}
		if reset := resp.Rate.Reset.Time; !reset.IsZero() && reset.Unix() > 0 && !b.reset.Equal(reset) {
			b.reset = reset
			updated = true
		}
	}

	if updated {
		b.probed = false
		close(b.changed)
		b.changed = make(chan struct{})
	}
}

func hasRateHeaders(h http.Header) bool {
	if _, err := strconv.Atoi(h.Get("X-RateLimit-Remaining")); err != nil {
		return false
	}
	_, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)
	return err == nil
}
