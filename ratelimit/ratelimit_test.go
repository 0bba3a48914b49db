package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, limits Limits) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLimiter(client, limits, nil), mr
}

func TestLimiter_Allow(t *testing.T) {
	l, _ := newTestLimiter(t, Limits{Requests: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Allow(ctx, "ws", "1.2.3.4"); err != nil {
			t.Fatalf("request %d: expected allowed, got %v", i+1, err)
		}
	}
	if err := l.Allow(ctx, "ws", "1.2.3.4"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited, got %v", err)
	}

	// Other keys and scopes have their own budget.
	if err := l.Allow(ctx, "ws", "5.6.7.8"); err != nil {
		t.Errorf("Expected other client to be allowed, got %v", err)
	}
	if err := l.Allow(ctx, "rooms", "1.2.3.4"); err != nil {
		t.Errorf("Expected other scope to be allowed, got %v", err)
	}
}

func TestLimiter_WindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t, Limits{Requests: 1, Window: time.Minute})
	ctx := context.Background()

	l.Allow(ctx, "ws", "a")
	if err := l.Allow(ctx, "ws", "a"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if err := l.Allow(ctx, "ws", "a"); err != nil {
		t.Errorf("Expected a fresh window, got %v", err)
	}
}

func TestLimiter_Remaining(t *testing.T) {
	l, _ := newTestLimiter(t, Limits{Requests: 5, Window: time.Minute})
	ctx := context.Background()

	if n, err := l.Remaining(ctx, "ws", "a"); err != nil || n != 5 {
		t.Errorf("Expected 5 remaining, got %d (%v)", n, err)
	}
	l.Allow(ctx, "ws", "a")
	l.Allow(ctx, "ws", "a")
	if n, err := l.Remaining(ctx, "ws", "a"); err != nil || n != 3 {
		t.Errorf("Expected 3 remaining, got %d (%v)", n, err)
	}
}

func TestLimiter_FailOpen(t *testing.T) {
	tests := []struct {
		name    string
		limiter func(t *testing.T) *Limiter
	}{
		{"nil limiter", func(t *testing.T) *Limiter { return nil }},
		{"no redis client", func(t *testing.T) *Limiter { return NewLimiter(nil, Limits{Requests: 1, Window: time.Minute}, nil) }},
		{"redis down", func(t *testing.T) *Limiter {
			l, mr := newTestLimiter(t, Limits{Requests: 1, Window: time.Minute})
			mr.Close()
			return l
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := tt.limiter(t)
			for i := 0; i < 5; i++ {
				if err := l.Allow(context.Background(), "ws", "a"); err != nil {
					t.Fatalf("Expected fail-open, got %v", err)
				}
			}
		})
	}
}

func TestLimiter_Middleware(t *testing.T) {
	l, _ := newTestLimiter(t, Limits{Requests: 2, Window: time.Minute})
	handler := l.Middleware("api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		code      int
		remaining string
	}{
		{http.StatusOK, "1"},
		{http.StatusOK, "0"},
		{http.StatusTooManyRequests, ""},
	}

	for i, tt := range tests {
		req := httptest.NewRequest("POST", "/createroom", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != tt.code {
			t.Errorf("request %d: expected %d, got %d", i+1, tt.code, w.Code)
		}
		if got := w.Header().Get("X-RateLimit-Remaining"); got != tt.remaining {
			t.Errorf("request %d: expected remaining %q, got %q", i+1, tt.remaining, got)
		}
		if tt.code == http.StatusOK && w.Header().Get("X-RateLimit-Limit") != "2" {
			t.Errorf("request %d: expected limit header 2, got %q", i+1, w.Header().Get("X-RateLimit-Limit"))
		}
	}
}

func TestLimiter_MiddlewareWithoutRedis(t *testing.T) {
	var l *Limiter
	handler := l.Middleware("api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/createroom", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-RateLimit-Remaining") != "" {
		t.Error("A disabled limiter must not report a budget")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr", "10.0.0.1:1234", "", "10.0.0.1"},
		{"forwarded single", "10.0.0.1:1234", "203.0.113.9", "203.0.113.9"},
		{"forwarded chain", "10.0.0.1:1234", "203.0.113.9, 10.0.0.2", "203.0.113.9"},
		{"no port", "10.0.0.1", "", "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
