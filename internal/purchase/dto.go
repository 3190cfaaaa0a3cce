// AngelaMos | 2026
// dto.go

package purchase

import (
	"time"

	"github.com/carterperez-dev/templates/checkout-backend/internal/gateway"
)

type CreatePurchaseRequest struct {
	Items         []CartItemRequest `json:"items"          validate:"required,min=1,max=50,dive"`
	PaymentMethod string            `json:"payment_method" validate:"omitempty,oneof=QRIS BANK_TRANSFER E_WALLET INVOICE"`
	Contact       *ContactRequest   `json:"contact,omitempty"`
}

// CartItemRequest has no price field. Prices always come from the product
// rows.
type CartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity"   validate:"required,min=1,max=100"`
}

type ContactRequest struct {
	Name  string `json:"name"  validate:"omitempty,max=100"`
	Email string `json:"email" validate:"omitempty,email,max=255"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
}

type InitiatePaymentRequest struct {
	PaymentMethod      string `json:"payment_method"       validate:"omitempty,oneof=QRIS BANK_TRANSFER E_WALLET INVOICE"`
	BankCode           string `json:"bank_code"            validate:"omitempty,max=32"`
	ChannelCode        string `json:"channel_code"         validate:"omitempty,max=32"`
	MobileNumber       string `json:"mobile_number"        validate:"omitempty,max=32"`
	SuccessRedirectURL string `json:"success_redirect_url" validate:"omitempty,url"`
	FailureRedirectURL string `json:"failure_redirect_url" validate:"omitempty,url"`
}

type ItemResponse struct {
	ProductID       string `json:"product_id"`
	Quantity        int    `json:"quantity"`
	PriceAtPurchase int64  `json:"price_at_purchase"`
	LineTotal       int64  `json:"line_total"`
}

type PurchaseResponse struct {
	ID            string         `json:"id"`
	TotalAmount   int64          `json:"total_amount"`
	PaymentMethod gateway.Method `json:"payment_method"`
	PaymentStatus Status         `json:"payment_status"`
	TransactionID *string        `json:"transaction_id,omitempty"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	FailedAt      *time.Time     `json:"failed_at,omitempty"`
	FailureReason *string        `json:"failure_reason,omitempty"`
	Items         []ItemResponse `json:"items,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type StatusResponse struct {
	PurchaseID    string     `json:"purchase_id"`
	Status        Status     `json:"status"`
	TransactionID *string    `json:"transaction_id,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type PaymentInstructionsResponse struct {
	PurchaseID          string            `json:"purchase_id"`
	Type                gateway.Method    `json:"type"`
	Amount              int64             `json:"amount"`
	Currency            string            `json:"currency"`
	ExpiryTime          time.Time         `json:"expiry_time"`
	ProviderReference   string            `json:"provider_reference"`
	Fields              map[string]string `json:"fields"`
	PollIntervalSeconds int               `json:"poll_interval_seconds"`
	WatchdogSeconds     int               `json:"watchdog_seconds"`
}

type VerifyResponse struct {
	Outcome Outcome        `json:"outcome"`
	Status  StatusResponse `json:"status"`
}

func ToPurchaseResponse(p *Purchase) PurchaseResponse {
	resp := PurchaseResponse{
		ID:            p.ID,
		TotalAmount:   p.TotalAmount,
		PaymentMethod: p.PaymentMethod,
		PaymentStatus: p.PaymentStatus,
		TransactionID: p.TransactionID,
		ExpiresAt:     p.ExpiresAt,
		CompletedAt:   p.CompletedAt,
		FailedAt:      p.FailedAt,
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}

	for _, item := range p.Items {
		resp.Items = append(resp.Items, ItemResponse{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
			LineTotal:       item.LineTotal(),
		})
	}

	return resp
}

func ToPurchaseResponseList(purchases []Purchase) []PurchaseResponse {
	responses := make([]PurchaseResponse, 0, len(purchases))
	for i := range purchases {
		responses = append(responses, ToPurchaseResponse(&purchases[i]))
	}
	return responses
}

func ToStatusResponse(p *Purchase) StatusResponse {
	return StatusResponse{
		PurchaseID:    p.ID,
		Status:        p.PaymentStatus,
		TransactionID: p.TransactionID,
		CompletedAt:   p.CompletedAt,
		ExpiresAt:     p.ExpiresAt,
	}
}

func ToPaymentInstructionsResponse(pi *PaymentInstructions) PaymentInstructionsResponse {
	fields := pi.Fields
	if fields == nil {
		fields = map[string]string{}
	}

	return PaymentInstructionsResponse{
		PurchaseID:          pi.PurchaseID,
		Type:                pi.Method,
		Amount:              pi.Amount,
		Currency:            pi.Currency,
		ExpiryTime:          pi.ExpiresAt,
		ProviderReference:   pi.ProviderReference,
		Fields:              fields,
		PollIntervalSeconds: int(pi.PollInterval.Seconds()),
		WatchdogSeconds:     int(pi.Watchdog.Seconds()),
	}
}
