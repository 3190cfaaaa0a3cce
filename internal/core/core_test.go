// AngelaMos | 2026
// core_test.go

package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestTokenEquals(t *testing.T) {
	if !TokenEquals("secret", "secret") {
		t.Fatal("equal tokens should match")
	}
	if TokenEquals("secreT", "secret") {
		t.Fatal("different tokens should not match")
	}
	if TokenEquals("", "") {
		t.Fatal("an unset expected token never matches")
	}
}

func TestHashBytesIsStable(t *testing.T) {
	a := HashBytes([]byte(`{"id":"inv-1"}`))
	if a != HashBytes([]byte(`{"id":"inv-1"}`)) || len(a) != 64 {
		t.Fatalf("unexpected hash %q", a)
	}
	if a == HashBytes([]byte(`{"id":"inv-2"}`)) {
		t.Fatal("different bodies must hash differently")
	}
}

func TestIsDuplicateKeyError(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	if !IsDuplicateKeyError(dup) {
		t.Fatal("expected 23505 to be a duplicate key")
	}
	if IsDuplicateKeyError(&pgconn.PgError{Code: "40001"}) || IsDuplicateKeyError(errors.New("x")) {
		t.Fatal("only unique violations are duplicate keys")
	}
}

func TestJSONErrorHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONError(rec, errors.New("pq: password authentication failed"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != "INTERNAL_ERROR" || resp.Error.Message != "an unexpected error occurred" {
		t.Fatalf("internal details leaked: %+v", resp.Error)
	}

	rec = httptest.NewRecorder()
	JSONError(rec, fmt.Errorf("wrapped: %w", ConflictError("PURCHASE_CLOSED", "purchase is closed")))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for wrapped AppError, got %d", rec.Code)
	}
}

func TestPaginatedMeta(t *testing.T) {
	rec := httptest.NewRecorder()
	Paginated(rec, []int{1, 2}, 2, 2, 5)

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Meta == nil || resp.Meta.TotalPages != 3 {
		t.Fatalf("expected 3 pages, got %+v", resp.Meta)
	}
}

func TestJitteredDuration(t *testing.T) {
	for _, base := range []time.Duration{0, time.Nanosecond, 6 * time.Nanosecond, -time.Second} {
		if got := jitteredDuration(base); got != base {
			t.Fatalf("jitteredDuration(%v) = %v, want unchanged", base, got)
		}
	}

	base := 30 * time.Minute
	for range 100 {
		got := jitteredDuration(base)
		if got < base || got >= base+base/7 {
			t.Fatalf("jitteredDuration(%v) = %v out of range", base, got)
		}
	}
}
