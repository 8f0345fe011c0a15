package server

import (
	"sync"
	"time"
)

// RateLimiter implements per-session rate limiting with a sliding window.
// Throttling sits in front of the core as middleware; the session/event
// engine itself is unaware of it.
type RateLimiter struct {
	limits          map[string]*rateLimitState
	maxRequests     int
	window          time.Duration
	mu              sync.Mutex
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
}

type rateLimitState struct {
	requests []int64 // request times, unix milliseconds
}

// NewRateLimiter creates a limiter allowing maxRequests per window for
// each session token.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limits:          make(map[string]*rateLimitState),
		maxRequests:     maxRequests,
		window:          window,
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go rl.startCleanup()

	return rl
}

// CheckLimit checks if a request for the given session token is allowed.
func (rl *RateLimiter) CheckLimit(token string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now().UnixMilli()
	windowMs := rl.window.Milliseconds()

	state, exists := rl.limits[token]
	if !exists {
		state = &rateLimitState{}
		rl.limits[token] = state
	}

	// Drop requests that have slid out of the window
	valid := state.requests[:0]
	for _, reqTime := range state.requests {
		if now-reqTime < windowMs {
			valid = append(valid, reqTime)
		}
	}
	state.requests = valid

	if len(state.requests) >= rl.maxRequests {
		return false
	}

	state.requests = append(state.requests, now)
	return true
}

// GetRetryAfter returns the number of seconds until the limit resets.
func (rl *RateLimiter) GetRetryAfter(token string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, exists := rl.limits[token]
	if !exists || len(state.requests) == 0 {
		return 0
	}

	now := time.Now().UnixMilli()
	oldest := state.requests[0]

	retryAfterMs := rl.window.Milliseconds() - (now - oldest)
	if retryAfterMs < 0 {
		return 0
	}

	return int((retryAfterMs + 999) / 1000)
}

// startCleanup periodically removes idle entries
func (rl *RateLimiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now().UnixMilli()
	windowMs := rl.window.Milliseconds()

	for token, state := range rl.limits {
		valid := state.requests[:0]
		for _, reqTime := range state.requests {
			if now-reqTime < windowMs {
				valid = append(valid, reqTime)
			}
		}
		if len(valid) == 0 {
			delete(rl.limits, token)
		} else {
			state.requests = valid
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	close(rl.stopCleanup)
}
