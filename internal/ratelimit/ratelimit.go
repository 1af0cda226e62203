// Package ratelimit implements a fixed-window request limiter keyed by
// client identity, with an explicitly owned store and sweep lifecycle.
package ratelimit

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

const sweepInterval = 5 * time.Minute

// entry is one client's counter for the current window.
type entry struct {
	count     int
	resetTime time.Time
}

// Store holds per-key window counters. Each limiter instance owns its own
// Store so route groups never share budgets. State is in-memory and
// best-effort; a process restart resets all counters.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	sweepCancel context.CancelFunc
	done        chan struct{}

	// test hook
	now func() time.Time
}

// NewStore creates an empty counter store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// hit registers one request for key against a window of the given size and
// returns the entry state after the increment.
func (s *Store) hit(key string, window time.Duration) (count int, resetTime time.Time) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.resetTime.Before(now) {
		// New window. Fixed, not sliding: a client can burst up to 2*max
		// around a window boundary.
		e = &entry{count: 1, resetTime: now.Add(window)}
		s.entries[key] = e
	} else {
		e.count++
	}

	return e.count, e.resetTime
}

// Sweep removes entries whose window has already passed and returns how many
// were dropped.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if e.resetTime.Before(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Start launches the periodic sweep goroutine. It runs until Stop is called
// or ctx is cancelled.
func (s *Store) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.sweepCancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the sweep goroutine and waits for it to exit.
func (s *Store) Stop() {
	if s.sweepCancel == nil {
		return
	}
	s.sweepCancel()
	<-s.done
}

// Config controls one limiter instance.
type Config struct {
	Window  time.Duration // window size, > 0
	Max     int           // requests allowed per window, > 0
	Message string        // body message on rejection
	// KeyFunc derives the client key. Defaults to the authenticated user id
	// from c.Locals("user_id"), else the client IP.
	KeyFunc func(c *fiber.Ctx) string
	// OnReject is called once per rejected request, if set.
	OnReject func()
}

// RejectionBody is the JSON body returned on a 429.
type RejectionBody struct {
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"` // seconds, rounded up
}

func defaultKeyFunc(c *fiber.Ctx) string {
	if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
		return userID
	}
	if ip := c.IP(); ip != "" {
		return ip
	}
	return "unknown"
}

// Middleware returns a Fiber handler enforcing cfg against the given store.
func Middleware(store *Store, cfg Config) fiber.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = defaultKeyFunc
	}
	message := cfg.Message
	if message == "" {
		message = "عذراً، لقد تجاوزت الحد المسموح من الطلبات. حاول مرة أخرى لاحقاً."
	}

	return func(c *fiber.Ctx) error {
		key := keyFunc(c)
		count, resetTime := store.hit(key, cfg.Window)

		remaining := cfg.Max - count
		if remaining < 0 {
			remaining = 0
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(unixCeil(resetTime), 10))

		if count > cfg.Max {
			retryAfter := int(math.Ceil(resetTime.Sub(store.now()).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set("Retry-After", strconv.Itoa(retryAfter))
			if cfg.OnReject != nil {
				cfg.OnReject()
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(RejectionBody{
				Message:    message,
				RetryAfter: retryAfter,
			})
		}

		return c.Next()
	}
}

func unixCeil(t time.Time) int64 {
	secs := t.Unix()
	if t.Nanosecond() > 0 {
		secs++
	}
	return secs
}
