package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter paces outbound API calls
type Limiter interface {
	// Allow reports whether a call may proceed right now
	Allow() bool
	// Wait blocks until a call may proceed or the context ends
	Wait(ctx context.Context) error
	// Reset clears the limiter state
	Reset()
}

// SlidingWindow allows at most maxRequests calls per window. The document
// API enforces an average of three requests per second; staying under it
// avoids burning retry budget on 429 responses.
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a sliding window limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
	}
}

// Allow records and permits a call when the window has room
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	sw.evict(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}

	return false
}

// Wait blocks until the window has room, honoring context cancellation
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		if sw.Allow() {
			return nil
		}

		delay := sw.nextSlot()
		if delay <= 0 {
			delay = 10 * time.Millisecond
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Reset clears all recorded calls
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.requests = sw.requests[:0]
}

// nextSlot returns how long until the oldest recorded call leaves the window
func (sw *SlidingWindow) nextSlot() time.Duration {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if len(sw.requests) == 0 {
		return 0
	}
	return sw.windowSize - time.Since(sw.requests[0])
}

// evict removes calls that have left the window
func (sw *SlidingWindow) evict(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && sw.requests[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}

// Unlimited is a no-op limiter for tests and tools that pace themselves
type Unlimited struct{}

func (Unlimited) Allow() bool                    { return true }
func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (Unlimited) Reset()                         {}
