// AngelaMos | 2026
// handler_test.go

package purchase

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/checkout-backend/internal/core"
	"github.com/carterperez-dev/templates/checkout-backend/internal/gateway"
	"github.com/carterperez-dev/templates/checkout-backend/internal/middleware"
	"github.com/carterperez-dev/templates/checkout-backend/internal/product"
)

func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-Test-User")
		if userID == "" {
			core.Unauthorized(w, "missing authorization token")
			return
		}
		ctx := middleware.WithClaims(r.Context(), &middleware.AccessTokenClaims{
			UserID: userID,
			Email:  userID + "@example.com",
			Role:   middleware.RoleCustomer,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newTestRouter(f *fixture) http.Handler {
	r := chi.NewRouter()
	NewHandler(f.svc).RegisterRoutes(r, fakeAuth, nil)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, userID string, body any) (*httptest.ResponseRecorder, core.Response) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-Test-User", userID)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp core.Response
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

func TestHandlerCreateIgnoresClientPrice(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f)
	prod := f.product(t, 125000)

	rec, resp := doJSON(t, h, http.MethodPost, "/purchases", "user-1", map[string]any{
		"items":          []map[string]any{{"product_id": prod, "quantity": 1, "price": 1}},
		"payment_method": "QRIS",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	data := resp.Data.(map[string]any)
	if data["total_amount"].(float64) != 125000 {
		t.Fatalf("expected server-side total, got %v", data["total_amount"])
	}
	if data["payment_status"] != "PENDING" {
		t.Fatalf("expected PENDING, got %v", data["payment_status"])
	}
}

func TestHandlerErrorMapping(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f)
	prod := f.product(t, 1000)
	archived := f.product(t, 1000)
	f.db.setProductStatus(archived, product.StatusArchived)

	rec, _ := doJSON(t, h, http.MethodPost, "/purchases", "", map[string]any{})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth, got %d", rec.Code)
	}

	rec, _ = doJSON(t, h, http.MethodPost, "/purchases", "user-1", map[string]any{
		"items": []map[string]any{{"product_id": prod, "quantity": 0}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero quantity, got %d", rec.Code)
	}

	rec, resp := doJSON(t, h, http.MethodPost, "/purchases", "user-1", map[string]any{
		"items": []map[string]any{{"product_id": archived, "quantity": 1}},
	})
	if rec.Code != http.StatusConflict || resp.Error.Code != "PRODUCT_UNAVAILABLE" {
		t.Fatalf("expected 409 PRODUCT_UNAVAILABLE, got %d %+v", rec.Code, resp.Error)
	}

	p := f.create(t, "user-1", gateway.MethodInvoice, ItemInput{ProductID: prod, Quantity: 1})

	rec, _ = doJSON(t, h, http.MethodGet, "/purchases/"+p.ID, "user-2", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user, got %d", rec.Code)
	}

	rec, _ = doJSON(t, h, http.MethodGet, "/purchases/not-a-uuid", "user-1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	f.gw.failNext = &gateway.Error{StatusCode: 500, Code: "SERVER_ERROR", Message: "down"}
	rec, _ = doJSON(t, h, http.MethodPost, "/purchases/"+p.ID+"/payment", "user-1", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on gateway failure, got %d", rec.Code)
	}

	rec, _ = doJSON(t, h, http.MethodPost, "/purchases/"+p.ID+"/retry", "user-1", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 when retrying a pending purchase, got %d", rec.Code)
	}
}

func TestHandlerPaymentStatusAndVerify(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f)
	prod := f.product(t, 125000)
	p := f.create(t, "user-1", gateway.MethodQRIS, ItemInput{ProductID: prod, Quantity: 1})

	rec, resp := doJSON(t, h, http.MethodPost, "/purchases/"+p.ID+"/payment", "user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data := resp.Data.(map[string]any)
	if data["type"] != "QRIS" || data["poll_interval_seconds"].(float64) != 3 {
		t.Fatalf("unexpected instructions: %v", data)
	}
	if data["watchdog_seconds"].(float64) != 900 {
		t.Fatalf("expected 900s watchdog, got %v", data["watchdog_seconds"])
	}

	rec, resp = doJSON(t, h, http.MethodGet, "/purchases/"+p.ID+"/status", "user-1", nil)
	if rec.Code != http.StatusOK || resp.Data.(map[string]any)["status"] != "PENDING" {
		t.Fatalf("expected PENDING status, got %d %v", rec.Code, resp.Data)
	}

	rec, resp = doJSON(t, h, http.MethodPost, "/purchases/"+p.ID+"/verify", "user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	verify := resp.Data.(map[string]any)
	if verify["outcome"] != string(OutcomeTransitioned) {
		t.Fatalf("expected transitioned, got %v", verify["outcome"])
	}

	rec, resp = doJSON(t, h, http.MethodGet, "/purchases?page=1&page_size=10", "user-1", nil)
	if rec.Code != http.StatusOK || resp.Meta == nil || resp.Meta.Total != 1 {
		t.Fatalf("expected one purchase in list, got %d %+v", rec.Code, resp.Meta)
	}
}
