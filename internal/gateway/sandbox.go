// AngelaMos | 2026
// sandbox.go

package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sandbox is an in-process gateway for local development. Intents never
// settle by themselves; settle them through the manual verify endpoint or
// by posting a callback, or call Settle from a test.
type Sandbox struct {
	mu      sync.Mutex
	intents map[string]*Intent
	now     func() time.Time
}

func NewSandbox() *Sandbox {
	return &Sandbox{
		intents: make(map[string]*Intent),
		now:     time.Now,
	}
}

func (s *Sandbox) CreateInvoice(_ context.Context, req IntentRequest) (*Intent, error) {
	return s.create(MethodInvoice, req, func(ref string) map[string]string {
		return map[string]string{"invoice_url": "https://sandbox.invalid/invoices/" + ref}
	})
}

func (s *Sandbox) CreateQRCode(_ context.Context, req IntentRequest) (*Intent, error) {
	return s.create(MethodQRIS, req, func(ref string) map[string]string {
		return map[string]string{"qr_string": "00020101021226SANDBOX" + ref}
	})
}

func (s *Sandbox) CreateVirtualAccount(_ context.Context, req IntentRequest) (*Intent, error) {
	if req.BankCode == "" {
		return nil, fmt.Errorf("%w: bank code is required", ErrInvalidRequest)
	}
	return s.create(MethodBankTransfer, req, func(ref string) map[string]string {
		return map[string]string{
			"bank_code":      req.BankCode,
			"account_number": "8808" + strings.ReplaceAll(ref, "-", "")[:10],
		}
	})
}

func (s *Sandbox) CreateEWalletCharge(_ context.Context, req IntentRequest) (*Intent, error) {
	if req.ChannelCode == "" {
		return nil, fmt.Errorf("%w: channel code is required", ErrInvalidRequest)
	}
	return s.create(MethodEWallet, req, func(ref string) map[string]string {
		return map[string]string{
			"channel_code": req.ChannelCode,
			"checkout_url": "https://sandbox.invalid/ewallets/" + ref,
		}
	})
}

func (s *Sandbox) GetStatus(_ context.Context, _ Method, reference string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[reference]
	if !ok {
		return "", &Error{StatusCode: 404, Code: "DATA_NOT_FOUND", Message: "unknown reference"}
	}
	return intent.Status, nil
}

// Settle sets the raw provider status reported for reference.
func (s *Sandbox) Settle(reference, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[reference]
	if !ok {
		return fmt.Errorf("settle %s: unknown reference", reference)
	}
	intent.Status = status
	return nil
}

func (s *Sandbox) create(
	method Method,
	req IntentRequest,
	fields func(ref string) map[string]string,
) (*Intent, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ref := "sbx-" + uuid.New().String()

	var expiresAt *time.Time
	if method == MethodBankTransfer {
		t := s.now().Add(24 * time.Hour)
		expiresAt = &t
	}

	intent := &Intent{
		Method:    method,
		Reference: ref,
		Amount:    req.Amount,
		Status:    "PENDING",
		ExpiresAt: expiresAt,
		Fields:    fields(ref),
	}

	s.mu.Lock()
	s.intents[ref] = intent
	s.mu.Unlock()

	copied := *intent
	return &copied, nil
}
