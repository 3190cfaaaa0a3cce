// AngelaMos | 2026
// payment.go

package purchase

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/templates/checkout-backend/internal/activity"
	"github.com/carterperez-dev/templates/checkout-backend/internal/core"
	"github.com/carterperez-dev/templates/checkout-backend/internal/gateway"
)

const (
	qrValidity      = 24 * time.Hour
	invoiceValidity = 24 * time.Hour
	eWalletValidity = 15 * time.Minute
	vaFallback      = 24 * time.Hour
)

type PaymentInput struct {
	PurchaseID         string
	UserID             string
	Method             gateway.Method
	BankCode           string
	ChannelCode        string
	MobileNumber       string
	SuccessRedirectURL string
	FailureRedirectURL string
}

// PaymentInstructions is what a client needs to pay and to watch the
// purchase afterwards.
type PaymentInstructions struct {
	PurchaseID        string
	Method            gateway.Method
	Amount            int64
	Currency          string
	ProviderReference string
	ExpiresAt         time.Time
	Fields            map[string]string
	PollInterval      time.Duration
	Watchdog          time.Duration
}

// InitiatePayment creates a provider payment intent for a PENDING purchase.
// A provider failure leaves the purchase PENDING so the caller can try
// again, possibly with another method.
func (s *Service) InitiatePayment(
	ctx context.Context,
	in PaymentInput,
) (*PaymentInstructions, error) {
	ctx, span := core.StartSpan(ctx, tracerName, "purchase.initiate_payment",
		attribute.String("purchase.id", in.PurchaseID),
	)
	defer span.End()

	p, err := s.load(ctx, s.store, in.PurchaseID)
	if err != nil {
		return nil, err
	}
	if !p.IsOwnedBy(in.UserID) {
		return nil, ErrUnauthorized
	}
	if p.PaymentStatus != StatusPending {
		return nil, ErrPurchaseClosed
	}

	method := in.Method
	if method == "" {
		method = p.PaymentMethod
	}
	method = gateway.ParseMethod(string(method))
	span.SetAttributes(attribute.String("payment.method", string(method)))

	req := gateway.IntentRequest{
		ReferenceID: p.ID,
		Amount:      p.TotalAmount,
		Currency:    s.settings.Currency,
		Description: fmt.Sprintf("Order %s", p.ID),
		Customer: gateway.Customer{
			Name:  p.ContactName,
			Email: p.ContactEmail,
			Phone: p.ContactPhone,
		},
		Validity:           validityFor(method),
		BankCode:           in.BankCode,
		ChannelCode:        in.ChannelCode,
		MobileNumber:       in.MobileNumber,
		SuccessRedirectURL: in.SuccessRedirectURL,
		FailureRedirectURL: in.FailureRedirectURL,
	}

	intent, err := s.createIntent(ctx, method, req)
	if err != nil {
		core.SetSpanError(ctx, err)
		s.logger.WarnContext(ctx, "payment intent creation failed",
			"purchase_id", p.ID,
			"method", method,
			"error", err,
		)
		s.record(ctx, activity.Entry{
			UserID: p.UserID,
			Action: activity.ActionPaymentIntentFailed,
			Details: map[string]any{
				"purchase_id": p.ID,
				"method":      string(method),
				"error":       err.Error(),
			},
		})
		return nil, fmt.Errorf("%w: %w", ErrPaymentIntentCreationFailed, err)
	}

	expiresAt := s.now().Add(fallbackValidity(method))
	if intent.ExpiresAt != nil {
		expiresAt = *intent.ExpiresAt
	}

	err = s.store.InTx(ctx, func(tx Store) error {
		_, attached, err := tx.Purchases().AttachIntent(ctx, p.ID, method, intent.Reference, expiresAt)
		if err != nil {
			return err
		}
		if !attached {
			return ErrPurchaseClosed
		}

		return tx.Activity().Append(ctx, activity.Entry{
			UserID: p.UserID,
			Action: activity.ActionPaymentInitiated,
			Details: map[string]any{
				"purchase_id": p.ID,
				"method":      string(method),
				"reference":   intent.Reference,
				"expires_at":  expiresAt.UTC().Format(time.RFC3339),
			},
		})
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "payment initiated",
		"purchase_id", p.ID,
		"method", method,
		"reference", intent.Reference,
	)

	return &PaymentInstructions{
		PurchaseID:        p.ID,
		Method:            method,
		Amount:            p.TotalAmount,
		Currency:          s.settings.Currency,
		ProviderReference: intent.Reference,
		ExpiresAt:         expiresAt,
		Fields:            intent.Fields,
		PollInterval:      s.settings.PollInterval,
		Watchdog:          s.settings.ClientWatchdog,
	}, nil
}

func (s *Service) createIntent(
	ctx context.Context,
	method gateway.Method,
	req gateway.IntentRequest,
) (*gateway.Intent, error) {
	if s.gateway == nil {
		return nil, fmt.Errorf("%w: no gateway configured", gateway.ErrGateway)
	}

	switch method {
	case gateway.MethodQRIS:
		return s.gateway.CreateQRCode(ctx, req)
	case gateway.MethodBankTransfer:
		return s.gateway.CreateVirtualAccount(ctx, req)
	case gateway.MethodEWallet:
		return s.gateway.CreateEWalletCharge(ctx, req)
	default:
		return s.gateway.CreateInvoice(ctx, req)
	}
}

// validityFor is the lifetime requested from the provider. Zero lets the
// provider pick, which is how virtual accounts work.
func validityFor(method gateway.Method) time.Duration {
	switch method {
	case gateway.MethodQRIS:
		return qrValidity
	case gateway.MethodEWallet:
		return eWalletValidity
	case gateway.MethodBankTransfer:
		return 0
	default:
		return invoiceValidity
	}
}

func fallbackValidity(method gateway.Method) time.Duration {
	if v := validityFor(method); v > 0 {
		return v
	}
	return vaFallback
}
