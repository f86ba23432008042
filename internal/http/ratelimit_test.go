package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/redis/go-redis/v9"
)

// bucketScripter mimics the token bucket script with an in-memory counter
// per key.
type bucketScripter struct {
	capacity int64
	used     map[string]int64
	err      error
}

func (s *bucketScripter) run(keys []string) *redis.Cmd {
	if s.err != nil {
		return redis.NewCmdResult(nil, s.err)
	}
	if s.used == nil {
		s.used = make(map[string]int64)
	}
	key := keys[0]
	if s.used[key] >= s.capacity {
		return redis.NewCmdResult([]interface{}{int64(0), int64(0), int64(1500)}, nil)
	}
	s.used[key]++
	return redis.NewCmdResult([]interface{}{int64(1), s.capacity - s.used[key], int64(0)}, nil)
}

func (s *bucketScripter) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return s.run(keys)
}

func (s *bucketScripter) EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	return s.run(keys)
}

func (s *bucketScripter) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return s.run(keys)
}

func (s *bucketScripter) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	return s.run(keys)
}

func (s *bucketScripter) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult([]bool{true}, nil)
}

func (s *bucketScripter) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	return redis.NewStringResult("sha", nil)
}

func TestRateLimit(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	request := func(ip string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/auth", nil)
		req.RemoteAddr = ip + ":51234"
		return req
	}

	t.Run("rejects once the bucket is empty", func(t *testing.T) {
		observer := &observerStub{}
		scripter := &bucketScripter{capacity: 2}
		handler := RateLimit(RateLimitConfig{Capacity: 2, Prefix: "test"}, scripter, observer, discardLogger())(okHandler)

		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, request("10.0.0.1"))
			if rec.Code != http.StatusOK {
				t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
			}
		}

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request("10.0.0.1"))
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if got := rec.Header().Get("Retry-After"); got != "2" {
			t.Fatalf("expected Retry-After 2, got %q", got)
		}
		if len(observer.limited) != 1 || observer.limited[0] != "/auth" {
			t.Fatalf("unexpected limited routes %v", observer.limited)
		}
		if _, ok := scripter.used["test:ip:10.0.0.1:route:/auth"]; !ok {
			t.Fatalf("unexpected keys %v", scripter.used)
		}

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, request("10.0.0.2"))
		if rec.Code != http.StatusOK {
			t.Fatalf("other clients keep their own bucket, got %d", rec.Code)
		}
	})

	t.Run("fails open when redis is unavailable", func(t *testing.T) {
		scripter := &bucketScripter{capacity: 1, err: errors.New("connection refused")}
		handler := RateLimit(RateLimitConfig{Capacity: 1}, scripter, nil, discardLogger())(okHandler)

		for i := 0; i < 3; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, request("10.0.0.1"))
			if rec.Code != http.StatusOK {
				t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
			}
		}
	})

	t.Run("disabled without a client", func(t *testing.T) {
		handler := RateLimit(RateLimitConfig{Capacity: 1}, nil, nil, nil)(okHandler)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request("10.0.0.1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if got := clientIP(req); got != "192.0.2.1" {
		t.Fatalf("expected remote host, got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected forwarded client, got %q", got)
	}
}
