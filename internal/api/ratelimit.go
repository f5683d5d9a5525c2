package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	apitypes "github.com/VeltarosLabs/blockforge/pkg/api"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a per-client token bucket. Mining is CPU bound, so POST /mine goes through one.
type Limiter struct {
	mu        sync.Mutex
	rate      float64 // tokens/sec
	burst     float64
	cost      float64
	clients   map[string]*bucket
	ttl       time.Duration
	lastPrune time.Time
	now       func() time.Time
}

func NewLimiter(rate float64, burst float64, cost float64) *Limiter {
	if cost <= 0 {
		cost = 1
	}
	l := &Limiter{
		rate:    rate,
		burst:   burst,
		cost:    cost,
		clients: make(map[string]*bucket),
		ttl:     10 * time.Minute,
		now:     func() time.Time { return time.Now().UTC() },
	}
	l.lastPrune = l.now()
	return l
}

func (l *Limiter) Allow(r *http.Request) bool {
	ip := clientIP(r)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)

	b, ok := l.clients[ip]
	if !ok {
		b = &bucket{tokens: l.burst, last: now}
		l.clients[ip] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * l.rate
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
		b.last = now
	}

	if b.tokens < l.cost {
		return false
	}
	b.tokens -= l.cost
	return true
}

// Wrap rejects over-limit requests with 429 before they reach next.
func (l *Limiter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(r) {
			if l.rate > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(l.cost/l.rate))))
			}
			writeJSON(w, http.StatusTooManyRequests, apitypes.ErrorResponse{
				OK:    false,
				Code:  apitypes.CodeRateLimited,
				Error: "rate limited",
			})
			return
		}
		next(w, r)
	}
}

func (l *Limiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < 2*time.Minute {
		return
	}
	l.lastPrune = now

	for ip, b := range l.clients {
		if now.Sub(b.last) > l.ttl {
			delete(l.clients, ip)
		}
	}
}

func clientIP(r *http.Request) string {
	// X-Forwarded-For is not trusted; it can be spoofed.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
