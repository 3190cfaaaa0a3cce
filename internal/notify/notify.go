// AngelaMos | 2026
// notify.go

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is the payload for a completed purchase confirmation.
type Receipt struct {
	PurchaseID    string
	ToName        string
	ToEmail       string
	Currency      string
	Total         int64
	TransactionID string
	CompletedAt   time.Time
	Lines         []Line
}

type Line struct {
	Title     string
	Quantity  int
	UnitPrice int64
}

type Sender interface {
	SendReceipt(ctx context.Context, r Receipt) error
}

// LogSender writes receipts to the log. It stands in when no mail provider
// is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendReceipt(_ context.Context, r Receipt) error {
	s.logger.Info("receipt",
		"purchase_id", r.PurchaseID,
		"to", r.ToEmail,
		"total", FormatAmount(r.Total, r.Currency),
		"lines", len(r.Lines),
	)
	return nil
}

// FormatAmount renders a whole-unit amount with thousands separators,
// e.g. 150000 IDR becomes "IDR 150,000".
func FormatAmount(amount int64, currency string) string {
	s := decimal.NewFromInt(amount).StringFixed(0)

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := b.String()
	if negative {
		out = "-" + out
	}
	if currency == "" {
		return out
	}
	return fmt.Sprintf("%s %s", currency, out)
}
