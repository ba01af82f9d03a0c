package mid

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pochini/pochini/pkg/metrics"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }), mw("a"), mw("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if strings.Join(order, ",") != "a,b,handler" {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	h.ServeHTTP(httptest.NewRecorder(), req)
	out := buf.String()
	for _, want := range []string{`"path":"/api/chat"`, `"status":418`, `"remote":"10.0.0.1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %s: %s", want, out)
		}
	}
}

func TestStatusWriterFlushes(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := wrap(rec)
	var w http.ResponseWriter = sw
	f, ok := w.(http.Flusher)
	if !ok {
		t.Fatal("statusWriter must implement http.Flusher")
	}
	f.Flush()
	if !rec.Flushed {
		t.Error("flush not forwarded")
	}
	if _, _, err := sw.Hijack(); err == nil {
		t.Error("recorder cannot hijack; expected an error")
	}
	if sw.Unwrap() != rec {
		t.Error("Unwrap should return the wrapped writer")
	}
	sw.Write([]byte("hello"))
	sw.WriteHeader(http.StatusTeapot)
	if sw.status != http.StatusOK || sw.bytes != 5 {
		t.Errorf("status=%d bytes=%d", sw.status, sw.bytes)
	}
}

func TestLoggerWarnsOnServerError(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/news", nil))
	if !strings.Contains(buf.String(), `"level":"WARN"`) {
		t.Errorf("expected warn level: %s", buf.String())
	}
}

func TestRecover(t *testing.T) {
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	Recover(log, nil)(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	Recover(log, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected custom handler, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	h := CORS("https://pochini.ru")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/chat", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight: expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://pochini.ru" {
		t.Errorf("unexpected origin header %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
	if rec.Header().Get("Vary") != "Origin" || rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Errorf("unexpected preflight headers %v", rec.Header())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/news", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("simple request: expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	reg := metrics.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/news", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := Metrics(reg)(mux)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/news", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	if got := reg.Counter("http_requests_total", "", "route", "GET /api/news", "code", "2xx").Value(); got != 1 {
		t.Errorf("expected 1 news request, got %d", got)
	}
	if got := reg.Counter("http_requests_total", "", "route", "unmatched", "code", "4xx").Value(); got != 1 {
		t.Errorf("expected 1 unmatched request, got %d", got)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.168.1.5:1234"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if ClientIP(r) != "192.168.1.5" {
		t.Errorf("ClientIP must ignore forwarded headers, got %q", ClientIP(r))
	}
	if ForwardedIP(r) != "203.0.113.7" {
		t.Errorf("unexpected forwarded ip %q", ForwardedIP(r))
	}
	r.Header.Del("X-Forwarded-For")
	if ForwardedIP(r) != "192.168.1.5" {
		t.Errorf("ForwardedIP should fall back to the remote address, got %q", ForwardedIP(r))
	}
}

func TestRateLimit(t *testing.T) {
	l := NewIPLimiter(1, 2)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	h := RateLimit(l, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		r.RemoteAddr = ip + ":1000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}
	if send("1.1.1.1") != 200 || send("1.1.1.1") != 200 {
		t.Fatal("burst should be allowed")
	}
	if code := send("1.1.1.1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if send("2.2.2.2") != 200 {
		t.Fatal("other clients have their own bucket")
	}
	now = now.Add(time.Second)
	if send("1.1.1.1") != 200 {
		t.Fatal("bucket should refill after a second")
	}

	now = now.Add(time.Hour)
	send("3.3.3.3")
	if l.Len() != 1 {
		t.Errorf("idle visitors should be swept, have %d", l.Len())
	}
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	l := NewIPLimiter(1, 1)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	h := RateLimit(l, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 3)
	for i := range codes {
		r := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		r.RemoteAddr = "1.1.1.1:1000"
		r.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		codes[i] = rec.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests || codes[2] != http.StatusTooManyRequests {
		t.Errorf("spoofed forwarded hops must share one bucket, got %v", codes)
	}
	if l.Len() != 1 {
		t.Errorf("expected a single tracked client, have %d", l.Len())
	}
}

func TestRateLimitTrustProxy(t *testing.T) {
	l := NewIPLimiter(1, 1, TrustProxy())
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1000"
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	if got := l.Key(r); got != "203.0.113.7" {
		t.Errorf("trusted proxy should key by forwarded hop, got %q", got)
	}
}

func TestIPLimiterEvictsOldestWhenFull(t *testing.T) {
	l := NewIPLimiter(1, 1, MaxClients(2))
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(time.Second)
	l.Allow("b")
	now = now.Add(time.Second)
	l.Allow("c")

	if l.Len() != 2 {
		t.Fatalf("limiter should stay at its cap, have %d", l.Len())
	}
	l.mu.Lock()
	_, hasA := l.visitors["a"]
	_, hasC := l.visitors["c"]
	l.mu.Unlock()
	if hasA || !hasC {
		t.Errorf("expected the oldest client to be evicted, a=%v c=%v", hasA, hasC)
	}
}

func TestNewIPLimiterRaisesZeroBurst(t *testing.T) {
	l := NewIPLimiter(2, 0)
	if !l.Allow("a") {
		t.Error("a zero burst must not refuse every request")
	}
}
