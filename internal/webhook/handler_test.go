// AngelaMos | 2026
// handler_test.go

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/templates/checkout-backend/internal/core"
	"github.com/carterperez-dev/templates/checkout-backend/internal/purchase"
)

type stubReconciler struct {
	mu    sync.Mutex
	calls []purchase.Callback
	err   error
}

func (s *stubReconciler) HandleCallback(
	_ context.Context,
	cb purchase.Callback,
) (*purchase.ReconcileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, cb)
	if s.err != nil {
		return nil, s.err
	}
	return &purchase.ReconcileResult{
		Purchase: &purchase.Purchase{ID: cb.PurchaseID, PaymentStatus: purchase.StatusCompleted},
		Outcome:  purchase.OutcomeTransitioned,
	}, nil
}

func (s *stubReconciler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newRedis(t *testing.T) (*core.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &core.Redis{Client: client}, mr
}

func post(t *testing.T, h *Handler, token, body string) (*httptest.ResponseRecorder, Ack) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, CallbackPath, strings.NewReader(body))
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	var ack Ack
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
			t.Fatalf("decode ack: %v", err)
		}
	}
	return rec, ack
}

const invoicePaid = `{"id":"inv-1","external_id":"9b1f3c1e-6a59-4c1c-bb0e-3a4a0b6f1a10","status":"PAID"}`

func TestCallbackProcessesAndDedupes(t *testing.T) {
	rdb, _ := newRedis(t)
	rec := &stubReconciler{}
	h := NewHandler(rec, rdb, Config{CallbackToken: "secret", EnforceToken: true}, nil)

	resp, ack := post(t, h, "secret", invoicePaid)
	if resp.Code != http.StatusOK || ack.Status != AckProcessed {
		t.Fatalf("expected processed, got %d %+v", resp.Code, ack)
	}
	if ack.Outcome != string(purchase.OutcomeTransitioned) {
		t.Fatalf("expected outcome in ack, got %q", ack.Outcome)
	}

	_, ack = post(t, h, "secret", invoicePaid)
	if ack.Status != AckDuplicate {
		t.Fatalf("expected duplicate on redelivery, got %+v", ack)
	}
	if rec.count() != 1 {
		t.Fatalf("expected one reconcile call, got %d", rec.count())
	}
}

func TestCallbackTokenEnforcement(t *testing.T) {
	rec := &stubReconciler{}

	strict := NewHandler(rec, nil, Config{CallbackToken: "secret", EnforceToken: true}, nil)
	resp, _ := post(t, strict, "wrong", invoicePaid)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	resp, _ = post(t, strict, "", invoicePaid)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}
	if rec.count() != 0 {
		t.Fatalf("rejected callbacks must not reconcile")
	}

	lenient := NewHandler(rec, nil, Config{CallbackToken: "secret"}, nil)
	resp, ack := post(t, lenient, "wrong", invoicePaid)
	if resp.Code != http.StatusOK || ack.Status != AckProcessed {
		t.Fatalf("expected lenient mode to process, got %d %+v", resp.Code, ack)
	}
}

func TestCallbackAcksInvalidPayload(t *testing.T) {
	rec := &stubReconciler{}
	h := NewHandler(rec, nil, Config{CallbackToken: "secret", EnforceToken: true}, nil)

	for _, body := range []string{`not json`, `{}`, `{"status":"PAID"}`, `{"data":{"status":"SUCCEEDED"}}`} {
		resp, ack := post(t, h, "secret", body)
		if resp.Code != http.StatusOK || ack.Status != AckIgnored {
			t.Fatalf("%s: expected 200 ignored, got %d %+v", body, resp.Code, ack)
		}
	}
	if rec.count() != 0 {
		t.Fatalf("invalid payloads must not reconcile")
	}
}

func TestCallbackOutcomes(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   int
		status string
	}{
		{"unknown purchase", purchase.ErrPurchaseNotFound, http.StatusOK, AckIgnored},
		{"closed purchase", purchase.ErrPurchaseClosed, http.StatusOK, AckRejected},
		{"database down", errors.New("connection refused"), http.StatusInternalServerError, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &stubReconciler{err: tc.err}
			h := NewHandler(rec, nil, Config{CallbackToken: "secret", EnforceToken: true}, nil)

			resp, ack := post(t, h, "secret", invoicePaid)
			if resp.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, resp.Code)
			}
			if tc.status != "" && ack.Status != tc.status {
				t.Fatalf("expected %s, got %+v", tc.status, ack)
			}
		})
	}
}

func TestCallbackFailureReleasesDedupeKey(t *testing.T) {
	rdb, mr := newRedis(t)
	rec := &stubReconciler{err: errors.New("deadlock")}
	h := NewHandler(rec, rdb, Config{CallbackToken: "secret", EnforceToken: true}, nil)

	resp, _ := post(t, h, "secret", invoicePaid)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("dedupe key should be released, found %v", mr.Keys())
	}

	rec.mu.Lock()
	rec.err = nil
	rec.mu.Unlock()

	_, ack := post(t, h, "secret", invoicePaid)
	if ack.Status != AckProcessed {
		t.Fatalf("redelivery after failure should be processed, got %+v", ack)
	}
	if rec.count() != 2 {
		t.Fatalf("expected two reconcile attempts, got %d", rec.count())
	}
}

func TestCallbackProceedsWhenRedisIsDown(t *testing.T) {
	rdb, mr := newRedis(t)
	mr.Close()

	rec := &stubReconciler{}
	h := NewHandler(rec, rdb, Config{CallbackToken: "secret", EnforceToken: true}, nil)

	_, ack := post(t, h, "secret", invoicePaid)
	if ack.Status != AckProcessed {
		t.Fatalf("expected processing without dedupe, got %+v", ack)
	}
}
