// AngelaMos | 2026
// gateway.go

package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Method string

const (
	MethodQRIS         Method = "QRIS"
	MethodBankTransfer Method = "BANK_TRANSFER"
	MethodEWallet      Method = "E_WALLET"
	MethodInvoice      Method = "INVOICE"
)

// ParseMethod maps free-form input onto a supported method. Anything it does
// not recognise becomes an invoice, which lets the payer choose on the
// provider's hosted page.
func ParseMethod(raw string) Method {
	switch Method(strings.ToUpper(strings.TrimSpace(raw))) {
	case MethodQRIS:
		return MethodQRIS
	case MethodBankTransfer:
		return MethodBankTransfer
	case MethodEWallet:
		return MethodEWallet
	default:
		return MethodInvoice
	}
}

type Customer struct {
	Name  string
	Email string
	Phone string
}

// IntentRequest is the provider-neutral request for a payment intent.
// ReferenceID is the purchase ID and comes back on every callback.
type IntentRequest struct {
	ReferenceID        string
	Amount             int64
	Currency           string
	Description        string
	Customer           Customer
	Validity           time.Duration
	BankCode           string
	ChannelCode        string
	MobileNumber       string
	SuccessRedirectURL string
	FailureRedirectURL string
}

// Intent is the normalized answer for every method. Fields carries the
// method specific values a client needs to pay (invoice_url, qr_string,
// account_number, checkout_url).
type Intent struct {
	Method    Method
	Reference string
	Amount    int64
	Status    string
	ExpiresAt *time.Time
	Fields    map[string]string
}

type Gateway interface {
	CreateInvoice(ctx context.Context, req IntentRequest) (*Intent, error)
	CreateQRCode(ctx context.Context, req IntentRequest) (*Intent, error)
	CreateVirtualAccount(ctx context.Context, req IntentRequest) (*Intent, error)
	CreateEWalletCharge(ctx context.Context, req IntentRequest) (*Intent, error)
	GetStatus(ctx context.Context, method Method, reference string) (string, error)
}

var (
	ErrGateway        = errors.New("payment gateway error")
	ErrInvalidRequest = errors.New("invalid payment intent request")
)

// Error is a non-2xx answer from the provider.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return ErrGateway
}

func validateRequest(req IntentRequest) error {
	if req.ReferenceID == "" {
		return fmt.Errorf("%w: reference id is required", ErrInvalidRequest)
	}
	if req.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	return nil
}
