// AngelaMos | 2026
// payload_test.go

package webhook

import (
	"errors"
	"testing"

	"github.com/carterperez-dev/templates/checkout-backend/internal/purchase"
)

func TestParseCallbackShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want purchase.Callback
	}{
		{
			name: "invoice",
			body: `{"id":"inv-1","external_id":"p-1","status":"PAID","amount":125000}`,
			want: purchase.Callback{
				PurchaseID:            "p-1",
				ProviderReference:     "inv-1",
				RawStatus:             "PAID",
				ProviderTransactionID: "inv-1",
			},
		},
		{
			name: "virtual account payment",
			body: `{"id":"evt-9","payment_id":"pay-1","callback_virtual_account_id":"va-1","external_id":"p-2","amount":50000}`,
			want: purchase.Callback{
				PurchaseID:            "p-2",
				ProviderReference:     "va-1",
				RawStatus:             "PAID",
				ProviderTransactionID: "pay-1",
			},
		},
		{
			name: "virtual account without external id",
			body: `{"id":"evt-9","callback_virtual_account_id":"va-1"}`,
			want: purchase.Callback{
				ProviderReference:     "va-1",
				RawStatus:             "PAID",
				ProviderTransactionID: "evt-9",
			},
		},
		{
			name: "event envelope",
			body: `{"event":"ewallet.capture","data":{"id":"ewc-1","reference_id":"p-3","status":"SUCCEEDED"}}`,
			want: purchase.Callback{
				PurchaseID:            "p-3",
				ProviderReference:     "ewc-1",
				RawStatus:             "SUCCEEDED",
				ProviderTransactionID: "ewc-1",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCallback([]byte(tc.body))
			if err != nil {
				t.Fatalf("ParseCallback: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseCallbackRejectsUnknownShapes(t *testing.T) {
	for _, body := range []string{``, `[]`, `{"external_id":"p-1"}`, `{"data":{"reference_id":"p-1"}}`} {
		if _, err := ParseCallback([]byte(body)); !errors.Is(err, ErrInvalidCallbackPayload) {
			t.Fatalf("%q: expected ErrInvalidCallbackPayload, got %v", body, err)
		}
	}
}
