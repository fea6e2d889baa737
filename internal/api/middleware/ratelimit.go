package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	burstCapacityMultiplier    int     = 2
	defaultMaxClients          int     = 10000
	defaultGlobalRPS           int     = 100
	defaultClientRPS           int     = 10
	thresholdMultiplier        float64 = 0.8
	thresholdPercentage        int     = 80
	rateLimiterCleanupInterval         = 5 * time.Minute
	rateLimiterIdleTimeout             = 1 * time.Hour
)

type (
	// RateLimiter decides whether a request from client may proceed.
	RateLimiter interface {
		// Allow reports whether a request from the client key is within limits.
		// An empty key is treated as one shared anonymous client.
		Allow(client string) bool
	}

	// InMemoryRateLimiter implements RateLimiter with golang.org/x/time/rate token buckets.
	//
	// Two tiers are enforced: a global bucket shared by every request, then a bucket per
	// client key. Client buckets idle longer than IdleTimeout are dropped by a background
	// cleanup goroutine; call Close to stop it.
	InMemoryRateLimiter struct {
		global        *rate.Limiter
		perClient     map[string]*clientLimiter
		mu            sync.RWMutex
		cleanupTicker *time.Ticker
		done          chan struct{}
		closeOnce     sync.Once

		clientRPS       int
		clientBurst     int
		cleanupInterval time.Duration
		idleTimeout     time.Duration
		maxClients      int
	}

	clientLimiter struct {
		limiter    *rate.Limiter
		lastAccess time.Time
		mu         sync.Mutex
	}
)

// NewInMemoryRateLimiter creates a new in-memory rate limiter.
//
// Burst capacity is computed automatically as 2 × rate unless overridden in config.
//
// Example:
//
//	rl := NewInMemoryRateLimiter(&Config{GlobalRPS: 100, ClientRPS: 10})
//	defer rl.Close()
func NewInMemoryRateLimiter(config *Config) *InMemoryRateLimiter {
	globalBurst := computeBurstCapacity(config.GlobalRPS, config.GlobalBurst)
	clientBurst := computeBurstCapacity(config.ClientRPS, config.ClientBurst)

	maxClients := config.MaxClients
	if maxClients <= 0 {
		maxClients = defaultMaxClients
	}

	rl := &InMemoryRateLimiter{
		global:          rate.NewLimiter(rate.Limit(config.GlobalRPS), globalBurst),
		perClient:       make(map[string]*clientLimiter),
		done:            make(chan struct{}),
		clientRPS:       config.ClientRPS,
		clientBurst:     clientBurst,
		cleanupInterval: config.CleanupInterval,
		idleTimeout:     config.IdleTimeout,
		maxClients:      maxClients,
	}

	rl.startCleanup()

	return rl
}

// computeBurstCapacity returns burstOverride when positive, otherwise 2 × rate.
//
//	computeBurstCapacity(100, 0)   // 200
//	computeBurstCapacity(100, 500) // 500
func computeBurstCapacity(rate, burstOverride int) int {
	if burstOverride > 0 {
		return burstOverride
	}

	return rate * burstCapacityMultiplier
}

// Allow checks the global bucket first, then the client's bucket.
func (rl *InMemoryRateLimiter) Allow(client string) bool {
	if !rl.global.Allow() {
		return false
	}

	rl.mu.RLock()
	cl, ok := rl.perClient[client]
	rl.mu.RUnlock()

	if !ok {
		rl.mu.Lock()
		// Double-check after acquiring write lock
		if cl, ok = rl.perClient[client]; !ok {
			cl = &clientLimiter{
				limiter:    rate.NewLimiter(rate.Limit(rl.clientRPS), rl.clientBurst),
				lastAccess: time.Now(),
			}

			rl.perClient[client] = cl

			current := len(rl.perClient)
			threshold := int(float64(rl.maxClients) * thresholdMultiplier)

			if current >= threshold {
				slog.Warn("rate limiter approaching max clients limit",
					slog.Int("current_clients", current),
					slog.Int("max_clients", rl.maxClients),
					slog.Int("threshold_percent", thresholdPercentage),
				)
			}
		}

		rl.mu.Unlock()
	}

	cl.mu.Lock()
	cl.lastAccess = time.Now()
	cl.mu.Unlock()

	return cl.limiter.Allow()
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (rl *InMemoryRateLimiter) Close() error {
	rl.closeOnce.Do(func() {
		if rl.cleanupTicker != nil {
			rl.cleanupTicker.Stop()
		}

		close(rl.done)
	})

	return nil
}

func (rl *InMemoryRateLimiter) startCleanup() {
	cleanupInterval := rl.cleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = rateLimiterCleanupInterval
	}

	rl.cleanupTicker = time.NewTicker(cleanupInterval)

	go func() {
		for {
			select {
			case <-rl.cleanupTicker.C:
				rl.cleanup()
			case <-rl.done:
				return
			}
		}
	}()
}

// cleanup removes client limiters that haven't been accessed recently.
func (rl *InMemoryRateLimiter) cleanup() {
	idleTimeout := rl.idleTimeout
	if idleTimeout == 0 {
		idleTimeout = rateLimiterIdleTimeout
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for client, cl := range rl.perClient {
		cl.mu.Lock()
		lastAccess := cl.lastAccess
		cl.mu.Unlock()

		if now.Sub(lastAccess) > idleTimeout {
			delete(rl.perClient, client)
		}
	}
}

// ClientKey identifies the caller of r by the host part of its remote address.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// RateLimit returns a middleware that enforces rate limits on incoming requests.
//
// Requests over the limit get 429 (Too Many Requests) with an RFC 7807 body and a
// Retry-After header of one second.
func RateLimit(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(ClientKey(r)) {
				correlationID := GetCorrelationID(r.Context())

				w.Header().Set("Retry-After", strconv.Itoa(1))

				detail := "Rate limit exceeded. Please retry after some time."
				if err := writeProblem(w, r, http.StatusTooManyRequests, detail); err != nil {
					logger.Error("failed to write response with RFC 7807 error format",
						slog.String("correlation_id", correlationID),
						slog.String("path", r.URL.Path),
						slog.String("detail", detail),
						slog.String("error", err.Error()),
					)
				}

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
