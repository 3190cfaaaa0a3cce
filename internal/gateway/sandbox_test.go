// AngelaMos | 2026
// sandbox_test.go

package gateway

import (
	"context"
	"errors"
	"testing"
)

func TestSandboxLifecycle(t *testing.T) {
	sb := NewSandbox()
	ctx := context.Background()

	intent, err := sb.CreateQRCode(ctx, IntentRequest{ReferenceID: "p-1", Amount: 125000})
	if err != nil {
		t.Fatalf("CreateQRCode: %v", err)
	}
	if intent.Method != MethodQRIS || intent.Fields["qr_string"] == "" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
	if intent.ExpiresAt != nil {
		t.Fatal("QR intents carry no provider expiry")
	}

	status, err := sb.GetStatus(ctx, MethodQRIS, intent.Reference)
	if err != nil || status != "PENDING" {
		t.Fatalf("GetStatus = %q, %v", status, err)
	}

	if err := sb.Settle(intent.Reference, "COMPLETED"); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if status, _ := sb.GetStatus(ctx, MethodQRIS, intent.Reference); status != "COMPLETED" {
		t.Fatalf("expected settled status, got %q", status)
	}

	var gwErr *Error
	if _, err := sb.GetStatus(ctx, MethodQRIS, "missing"); !errors.As(err, &gwErr) || gwErr.StatusCode != 404 {
		t.Fatalf("expected typed 404, got %v", err)
	}
}

func TestSandboxValidatesMethodInputs(t *testing.T) {
	sb := NewSandbox()
	ctx := context.Background()
	req := IntentRequest{ReferenceID: "p-1", Amount: 50000}

	if _, err := sb.CreateVirtualAccount(ctx, req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest without bank code, got %v", err)
	}
	if _, err := sb.CreateEWalletCharge(ctx, req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest without channel code, got %v", err)
	}

	req.BankCode = "BCA"
	va, err := sb.CreateVirtualAccount(ctx, req)
	if err != nil {
		t.Fatalf("CreateVirtualAccount: %v", err)
	}
	if va.ExpiresAt == nil || va.Fields["account_number"] == "" {
		t.Fatalf("virtual account should carry expiry and account number: %+v", va)
	}

	if _, err := sb.CreateInvoice(ctx, IntentRequest{ReferenceID: "p-1"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected zero amount to be rejected, got %v", err)
	}
}
