// Package ratelimit bounds per-client request rates and concurrent chat
// streams. Single-process, in-memory.
package ratelimit

import (
	"math"
	"net"
	"net/http"
	"sync"
	"time"
)

// Config bounds one client's traffic.
type Config struct {
	RPS   float64
	Burst int

	// MaxConcurrentStreams caps open SSE turns per client.
	MaxConcurrentStreams int

	// Operational bounds for the in-memory map.
	MaxEntries int
	EntryTTL   time.Duration
}

// Limiter tracks per-client buckets.
type Limiter struct {
	cfg Config

	mu sync.Mutex
	m  map[string]*clientLimiter
}

type clientLimiter struct {
	mu sync.Mutex

	tb        tokenBucket
	streamSem chan struct{}
	lastSeen  time.Time
}

type tokenBucket struct {
	rps      float64
	capacity float64
	tokens   float64
	last     time.Time
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 30 * time.Minute
	}
	return &Limiter{cfg: cfg, m: make(map[string]*clientLimiter)}
}

// ClientKey identifies the caller: the session's owner email when the
// request carries one, otherwise the remote address.
func ClientKey(r *http.Request) string {
	if email := r.URL.Query().Get("email"); email != "" {
		return "e_" + email
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "a_" + r.RemoteAddr
	}
	return "a_" + host
}

// Permit must be released when the request finishes.
type Permit struct {
	release func()
}

// Release returns the permit. Safe to call more than once.
func (p *Permit) Release() {
	if p == nil || p.release == nil {
		return
	}
	p.release()
	p.release = nil
}

// Decision is the outcome of an acquire.
type Decision struct {
	Allowed    bool
	RetryAfter int
	Permit     *Permit
}

// Acquire admits one request for the client, applying the token bucket and
// the stream concurrency cap.
func (l *Limiter) Acquire(client string, now time.Time) Decision {
	if client == "" {
		client = "anonymous"
	}

	cl := l.getOrCreate(client, now)
	cl.touch(now)

	if l.cfg.RPS > 0 && l.cfg.Burst > 0 {
		ok, retryAfter := cl.allowToken(now, l.cfg.RPS, l.cfg.Burst)
		if !ok {
			return Decision{Allowed: false, RetryAfter: retryAfter}
		}
	}

	if l.cfg.MaxConcurrentStreams > 0 {
		select {
		case cl.streamSem <- struct{}{}:
			return Decision{
				Allowed: true,
				Permit:  &Permit{release: func() { <-cl.streamSem }},
			}
		default:
			return Decision{Allowed: false, RetryAfter: 1}
		}
	}

	return Decision{Allowed: true, Permit: &Permit{release: func() {}}}
}

func (l *Limiter) getOrCreate(client string, now time.Time) *clientLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.m) >= l.cfg.MaxEntries {
		l.gcLocked(now)
		// Still too big: drop an arbitrary entry, bounded memory wins.
		if len(l.m) >= l.cfg.MaxEntries {
			for k := range l.m {
				delete(l.m, k)
				break
			}
		}
	}

	if cl, ok := l.m[client]; ok {
		return cl
	}
	cl := &clientLimiter{
		streamSem: make(chan struct{}, max(1, l.cfg.MaxConcurrentStreams)),
		lastSeen:  now,
	}
	l.m[client] = cl
	return cl
}

func (l *Limiter) gcLocked(now time.Time) {
	for k, v := range l.m {
		if now.Sub(v.lastSeen) > l.cfg.EntryTTL {
			delete(l.m, k)
		}
	}
}

func (cl *clientLimiter) touch(now time.Time) {
	cl.lastSeen = now
}

func (cl *clientLimiter) allowToken(now time.Time, rps float64, burst int) (bool, int) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	capacity := float64(burst)
	if cl.tb.capacity == 0 {
		cl.tb = tokenBucket{rps: rps, capacity: capacity, tokens: capacity, last: now}
	}
	cl.tb.rps = rps
	cl.tb.capacity = capacity

	elapsed := now.Sub(cl.tb.last).Seconds()
	if elapsed > 0 {
		cl.tb.tokens = math.Min(cl.tb.capacity, cl.tb.tokens+(elapsed*cl.tb.rps))
		cl.tb.last = now
	}

	if cl.tb.tokens >= 1.0 {
		cl.tb.tokens -= 1.0
		return true, 0
	}

	retryAfter := int(math.Ceil((1.0 - cl.tb.tokens) / cl.tb.rps))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
