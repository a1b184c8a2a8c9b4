// Package ratelimit caps write requests per client address in fixed windows.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type Limiter struct {
	mu           sync.Mutex
	clients      map[string]*window
	stopCleanup  chan struct{}
	done         chan struct{}
	shutdownOnce sync.Once
	now          func() time.Time
	rejected     int64

	limit           int
	period          time.Duration
	cleanupInterval time.Duration
}

type window struct {
	start    time.Time
	requests int
}

type Config struct {
	// Requests is the number allowed per Period and client.
	Requests        int
	Period          time.Duration
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Requests:        60,
		Period:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewLimiter starts the cleanup goroutine; call Stop to end it.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.Requests <= 0 {
		config.Requests = def.Requests
	}
	if config.Period <= 0 {
		config.Period = def.Period
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}

	rl := &Limiter{
		clients:         make(map[string]*window),
		stopCleanup:     make(chan struct{}),
		done:            make(chan struct{}),
		now:             time.Now,
		limit:           config.Requests,
		period:          config.Period,
		cleanupInterval: config.CleanupInterval,
	}
	go rl.cleanupLoop()
	return rl
}

// Allow counts a request from key and reports whether it fits the current
// window, plus how long until the window resets.
func (rl *Limiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.clients[key]
	if !ok || now.Sub(w.start) >= rl.period {
		rl.clients[key] = &window{start: now, requests: 1}
		return true, 0
	}

	w.requests++
	if w.requests > rl.limit {
		atomic.AddInt64(&rl.rejected, 1)
		return false, rl.period - now.Sub(w.start)
	}
	return true, 0
}

func (rl *Limiter) cleanupLoop() {
	defer close(rl.done)
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Sweep()
		case <-rl.stopCleanup:
			return
		}
	}
}

// Sweep forgets clients whose window has expired and returns how many.
func (rl *Limiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for key, w := range rl.clients {
		if now.Sub(w.start) >= rl.period {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Rejected returns how many requests were refused so far.
func (rl *Limiter) Rejected() int64 {
	return atomic.LoadInt64(&rl.rejected)
}

// Stop ends the cleanup goroutine and waits for it.
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
		<-rl.done
	})
}

// Middleware limits requests whose method is not safe. Reads pass through.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			ok, retry := rl.Allow(extractIP(r))
			if !ok {
				secs := int(retry.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
