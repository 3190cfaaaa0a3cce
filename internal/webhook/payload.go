// AngelaMos | 2026
// payload.go

package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/carterperez-dev/templates/checkout-backend/internal/purchase"
)

var ErrInvalidCallbackPayload = errors.New("invalid callback payload")

// vaPaidStatus is implied by a virtual account payment notification, which
// carries no status field of its own.
const vaPaidStatus = "PAID"

type envelopeData struct {
	ID          string `json:"id"`
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
}

// payload is the union of the callback shapes the provider sends.
type payload struct {
	ID                       string        `json:"id"`
	ExternalID               string        `json:"external_id"`
	Status                   string        `json:"status"`
	PaymentID                string        `json:"payment_id"`
	CallbackVirtualAccountID string        `json:"callback_virtual_account_id"`
	Event                    string        `json:"event"`
	Data                     *envelopeData `json:"data"`
}

// ParseCallback decodes a provider notification. Three shapes are accepted:
// invoice style (external_id + status), virtual account payments
// (callback_virtual_account_id) and event envelopes (data.reference_id +
// data.status).
func ParseCallback(body []byte) (purchase.Callback, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return purchase.Callback{}, fmt.Errorf("%w: %w", ErrInvalidCallbackPayload, err)
	}

	switch {
	case p.CallbackVirtualAccountID != "":
		txID := p.PaymentID
		if txID == "" {
			txID = p.ID
		}
		return purchase.Callback{
			PurchaseID:            strings.TrimSpace(p.ExternalID),
			ProviderReference:     p.CallbackVirtualAccountID,
			RawStatus:             vaPaidStatus,
			ProviderTransactionID: txID,
		}, nil

	case p.ExternalID != "" && p.Status != "":
		return purchase.Callback{
			PurchaseID:            strings.TrimSpace(p.ExternalID),
			ProviderReference:     p.ID,
			RawStatus:             p.Status,
			ProviderTransactionID: p.ID,
		}, nil

	case p.Data != nil && p.Data.ReferenceID != "" && p.Data.Status != "":
		return purchase.Callback{
			PurchaseID:            strings.TrimSpace(p.Data.ReferenceID),
			ProviderReference:     p.Data.ID,
			RawStatus:             p.Data.Status,
			ProviderTransactionID: p.Data.ID,
		}, nil
	}

	return purchase.Callback{}, fmt.Errorf("%w: no recognised reference and status", ErrInvalidCallbackPayload)
}
