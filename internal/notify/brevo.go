// AngelaMos | 2026
// brevo.go

package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	brevo "github.com/getbrevo/brevo-go/lib"

	"github.com/carterperez-dev/templates/checkout-backend/internal/config"
)

var ErrNoRecipient = errors.New("receipt has no recipient")

type BrevoSender struct {
	client    *brevo.APIClient
	fromEmail string
	fromName  string
}

func NewBrevoSender(cfg config.NotifyConfig) *BrevoSender {
	bc := brevo.NewConfiguration()
	bc.AddDefaultHeader("api-key", cfg.BrevoAPIKey)
	bc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &BrevoSender{
		client:    brevo.NewAPIClient(bc),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

func (s *BrevoSender) SendReceipt(ctx context.Context, r Receipt) error {
	if r.ToEmail == "" {
		return fmt.Errorf("send receipt %s: %w", r.PurchaseID, ErrNoRecipient)
	}

	email := brevo.SendSmtpEmail{
		Sender: &brevo.SendSmtpEmailSender{
			Name:  s.fromName,
			Email: s.fromEmail,
		},
		To: []brevo.SendSmtpEmailTo{
			{Email: r.ToEmail, Name: r.ToName},
		},
		Subject:     fmt.Sprintf("Your receipt for order %s", shortID(r.PurchaseID)),
		HtmlContent: renderHTML(r),
		TextContent: renderText(r),
		Tags:        []string{"receipt"},
	}

	_, resp, err := s.client.TransactionalEmailsApi.SendTransacEmail(ctx, email)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close() //nolint:errcheck // body already consumed by the client
	}
	if err != nil {
		return fmt.Errorf("send receipt %s: %w", r.PurchaseID, err)
	}

	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func renderText(r Receipt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thanks for your purchase, %s.\n\n", displayName(r))
	for _, l := range r.Lines {
		fmt.Fprintf(&b, "%d x %s  %s\n", l.Quantity, l.Title,
			FormatAmount(l.UnitPrice*int64(l.Quantity), r.Currency))
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", FormatAmount(r.Total, r.Currency))
	fmt.Fprintf(&b, "Order: %s\n", r.PurchaseID)
	if r.TransactionID != "" {
		fmt.Fprintf(&b, "Payment reference: %s\n", r.TransactionID)
	}
	return b.String()
}

func renderHTML(r Receipt) string {
	var rows strings.Builder
	for _, l := range r.Lines {
		fmt.Fprintf(&rows,
			`<tr><td>%d</td><td>%s</td><td style="text-align:right">%s</td></tr>`,
			l.Quantity,
			html.EscapeString(l.Title),
			html.EscapeString(FormatAmount(l.UnitPrice*int64(l.Quantity), r.Currency)),
		)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Receipt</title></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
<h1>Thanks for your purchase, %s</h1>
<table style="width:100%%; border-collapse: collapse;">%s</table>
<p><strong>Total: %s</strong></p>
<p style="color:#999; font-size:12px;">Order %s</p>
</body>
</html>`,
		html.EscapeString(displayName(r)),
		rows.String(),
		html.EscapeString(FormatAmount(r.Total, r.Currency)),
		html.EscapeString(r.PurchaseID),
	)
}

func displayName(r Receipt) string {
	if r.ToName != "" {
		return r.ToName
	}
	return r.ToEmail
}
