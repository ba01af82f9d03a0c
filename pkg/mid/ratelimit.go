package mid

import (
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ClientIP returns the remote address without its port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ForwardedIP returns the first X-Forwarded-For hop, or ClientIP when the
// header is absent. Only use it behind a proxy that sets the header.
func ForwardedIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		if ip = strings.TrimSpace(ip); ip != "" {
			return ip
		}
	}
	return ClientIP(r)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPLimiter hands out one token bucket per client IP. Buckets idle for
// longer than ttl are dropped on the next sweep, and at most maxClients
// buckets are tracked.
type IPLimiter struct {
	rps        rate.Limit
	burst      int
	ttl        time.Duration
	maxClients int
	key        func(*http.Request) string
	now        func() time.Time

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

// LimiterOption configures an IPLimiter.
type LimiterOption func(*IPLimiter)

// TrustProxy keys clients by ForwardedIP instead of the remote address.
func TrustProxy() LimiterOption {
	return func(l *IPLimiter) { l.key = ForwardedIP }
}

// MaxClients caps the number of tracked clients. When full, the least
// recently seen client is evicted.
func MaxClients(n int) LimiterOption {
	return func(l *IPLimiter) {
		if n > 0 {
			l.maxClients = n
		}
	}
}

// NewIPLimiter allows rps requests per second per IP with the given burst.
// A burst below one is raised so that the configured rate can be served.
func NewIPLimiter(rps float64, burst int, opts ...LimiterOption) *IPLimiter {
	if burst < 1 {
		burst = max(1, int(math.Ceil(rps)))
	}
	l := &IPLimiter{
		rps:        rate.Limit(rps),
		burst:      burst,
		ttl:        10 * time.Minute,
		maxClients: 10000,
		key:        ClientIP,
		now:        time.Now,
		visitors:   make(map[string]*visitor),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Key returns the client key the limiter uses for r.
func (l *IPLimiter) Key(r *http.Request) string { return l.key(r) }

// Allow reports whether ip may make a request now.
func (l *IPLimiter) Allow(ip string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.ttl {
		l.sweep(now)
	}

	v, ok := l.visitors[ip]
	if !ok {
		if len(l.visitors) >= l.maxClients {
			l.sweep(now)
			if len(l.visitors) >= l.maxClients {
				l.evictOldest()
			}
		}
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *IPLimiter) sweep(now time.Time) {
	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, k)
		}
	}
	l.lastSweep = now
}

func (l *IPLimiter) evictOldest() {
	var oldest string
	var seen time.Time
	for k, v := range l.visitors {
		if oldest == "" || v.lastSeen.Before(seen) {
			oldest, seen = k, v.lastSeen
		}
	}
	delete(l.visitors, oldest)
}

// Len returns the number of tracked clients.
func (l *IPLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// RateLimit rejects requests over the per-IP budget by handing them to
// onLimit, or with a plain 429 when onLimit is nil.
func RateLimit(l *IPLimiter, onLimit http.HandlerFunc) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || l.Allow(l.Key(r)) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", "1")
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		})
	}
}
