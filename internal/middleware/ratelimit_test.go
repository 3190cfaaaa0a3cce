// AngelaMos | 2026
// ratelimit_test.go

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// unreachableRedis forces the limiter onto its in-process fallback.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	mr.Close()
	t.Cleanup(func() { _ = client.Close() })
	return client
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func hit(h http.Handler, r *http.Request) int {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec.Code
}

func TestRateLimiterFallbackEnforcesBurst(t *testing.T) {
	h := NewRateLimiter(unreachableRedis(t), RateLimitConfig{
		Limit: PerMinute(1, 2),
	}).Handler(okHandler)

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/v1/purchases", nil)
		r.RemoteAddr = "10.0.0.1:5555"
		return r
	}

	for i := range 2 {
		if code := hit(h, req()); code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i+1, code)
		}
	}
	if code := hit(h, req()); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", code)
	}

	other := httptest.NewRequest(http.MethodGet, "/v1/purchases", nil)
	other.RemoteAddr = "10.0.0.2:5555"
	if code := hit(h, other); code != http.StatusNoContent {
		t.Fatalf("another client should have its own bucket, got %d", code)
	}
}

func TestRateLimiterBypass(t *testing.T) {
	h := NewRateLimiter(unreachableRedis(t), RateLimitConfig{
		Limit:      PerMinute(1, 1),
		BypassFunc: func(r *http.Request) bool { return r.URL.Path == "/v1/payments/callback" },
	}).Handler(okHandler)

	for range 5 {
		r := httptest.NewRequest(http.MethodPost, "/v1/payments/callback", nil)
		if code := hit(h, r); code != http.StatusNoContent {
			t.Fatalf("bypassed route limited: %d", code)
		}
	}
}

func TestKeyByUserPerCustomer(t *testing.T) {
	h := NewRateLimiter(unreachableRedis(t), RateLimitConfig{
		Limit:   PerMinute(1, 1),
		KeyFunc: KeyByUser,
	}).Handler(okHandler)

	as := func(userID string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/v1/purchases/x/status", nil)
		r.RemoteAddr = "10.0.0.9:1"
		return r.WithContext(WithClaims(r.Context(), &AccessTokenClaims{UserID: userID}))
	}

	if code := hit(h, as("alice")); code != http.StatusNoContent {
		t.Fatalf("expected first poll allowed, got %d", code)
	}
	if code := hit(h, as("alice")); code != http.StatusTooManyRequests {
		t.Fatalf("expected second poll limited, got %d", code)
	}
	if code := hit(h, as("bob")); code != http.StatusNoContent {
		t.Fatalf("users behind one IP must not share a budget, got %d", code)
	}
}

func TestKeyByUserAndEndpointCollapsesIDs(t *testing.T) {
	key := func(path string) string {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		r = r.WithContext(WithClaims(r.Context(), &AccessTokenClaims{UserID: "alice"}))
		return KeyByUserAndEndpoint(r)
	}

	a := key("/v1/purchases/3f1f1c9e-2a4b-4c55-9f51-0a7c2f3d8e10/status")
	b := key("/v1/purchases/6c0a8e52-9d1e-4f4b-8a57-5d2a0c4b7e21/status")
	if a != b {
		t.Fatalf("status polls for different purchases should share a bucket: %q vs %q", a, b)
	}
	if a != "ratelimit:user:alice:endpoint:/v1/purchases/{id}/status" {
		t.Fatalf("unexpected key %q", a)
	}
	if key("/v1/purchases") == a {
		t.Fatal("list endpoint must not share the status bucket")
	}
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"socket", nil, "192.0.2.1:4000", "192.0.2.1"},
		{"forwarded", map[string]string{"X-Forwarded-For": "203.0.113.5, 198.51.100.7"}, "10.0.0.1:1", "198.51.100.7"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.9"}, "10.0.0.1:1", "203.0.113.9"},
		{"no port", nil, "192.0.2.1", "192.0.2.1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tc.want {
				t.Fatalf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}
