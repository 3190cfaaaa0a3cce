// AngelaMos | 2026
// reconcile.go

package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/templates/checkout-backend/internal/activity"
	"github.com/carterperez-dev/templates/checkout-backend/internal/core"
	"github.com/carterperez-dev/templates/checkout-backend/internal/notify"
)

const (
	manualStatus  = "PAID"
	expiredReason = "expired"
)

// Signal is one report about a purchase's payment, from any channel.
type Signal struct {
	Source                Source
	PurchaseID            string
	UserID                string
	ReportedStatus        string
	ProviderTransactionID string
}

type Outcome string

const (
	OutcomeTransitioned    Outcome = "transitioned"
	OutcomeAlreadyTerminal Outcome = "already_terminal"
	OutcomeAcknowledged    Outcome = "acknowledged"
)

type ReconcileResult struct {
	Purchase *Purchase
	Verdict  Verdict
	Outcome  Outcome
}

// Callback is a provider notification already decoded from its wire shape.
// Either PurchaseID or ProviderReference identifies the purchase.
type Callback struct {
	PurchaseID            string
	ProviderReference     string
	RawStatus             string
	ProviderTransactionID string
}

// Reconcile applies a status signal to a purchase. Every channel goes
// through here so the PENDING to terminal move happens exactly once, and
// entitlements are granted in the same transaction as the move.
func (s *Service) Reconcile(ctx context.Context, sig Signal) (*ReconcileResult, error) {
	ctx, span := core.StartSpan(ctx, tracerName, "purchase.reconcile",
		attribute.String("purchase.id", sig.PurchaseID),
		attribute.String("signal.source", string(sig.Source)),
		attribute.String("signal.status", sig.ReportedStatus),
	)
	defer span.End()

	p, err := s.load(ctx, s.store, sig.PurchaseID)
	if err != nil {
		return nil, err
	}

	if sig.Source == SourcePoll || sig.Source == SourceManual {
		if !p.IsOwnedBy(sig.UserID) {
			return nil, ErrUnauthorized
		}
	}

	verdict := Normalize(p.PaymentMethod, sig.ReportedStatus)
	span.SetAttributes(attribute.String("signal.verdict", verdict.String()))

	res, err := s.apply(ctx, p, sig, verdict)
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}
	return res, nil
}

func (s *Service) apply(
	ctx context.Context,
	p *Purchase,
	sig Signal,
	verdict Verdict,
) (*ReconcileResult, error) {
	if verdict == VerdictPending {
		return &ReconcileResult{Purchase: p, Verdict: verdict, Outcome: OutcomeAcknowledged}, nil
	}

	if p.PaymentStatus.IsTerminal() {
		return s.settled(ctx, p, sig, verdict)
	}

	if verdict == VerdictSuccess {
		return s.complete(ctx, p, sig)
	}

	reason := "provider reported " + strings.ToUpper(strings.TrimSpace(sig.ReportedStatus))
	if sig.Source == SourceExpiry {
		reason = expiredReason
	}
	return s.fail(ctx, p, sig, reason)
}

// settled handles a signal for a purchase that is already terminal. The
// only rejected combination is success after failure.
func (s *Service) settled(
	ctx context.Context,
	p *Purchase,
	sig Signal,
	verdict Verdict,
) (*ReconcileResult, error) {
	same := &ReconcileResult{Purchase: p, Verdict: verdict, Outcome: OutcomeAlreadyTerminal}

	switch {
	case p.PaymentStatus == StatusFailed && verdict == VerdictSuccess:
		s.logger.WarnContext(ctx, "success signal for failed purchase rejected",
			"purchase_id", p.ID,
			"source", sig.Source,
			"reported_status", sig.ReportedStatus,
		)
		s.record(ctx, activity.Entry{
			UserID: p.UserID,
			Action: activity.ActionReconcileRejected,
			Details: map[string]any{
				"purchase_id":     p.ID,
				"source":          string(sig.Source),
				"reported_status": sig.ReportedStatus,
				"current_status":  string(p.PaymentStatus),
			},
		})
		return nil, ErrPurchaseClosed

	case p.PaymentStatus == StatusCompleted && verdict == VerdictFailure:
		s.logger.WarnContext(ctx, "failure signal for completed purchase ignored",
			"purchase_id", p.ID,
			"source", sig.Source,
			"reported_status", sig.ReportedStatus,
		)
		return same, nil

	default:
		s.logger.DebugContext(ctx, "duplicate terminal signal",
			"purchase_id", p.ID,
			"source", sig.Source,
			"status", p.PaymentStatus,
		)
		return same, nil
	}
}

func (s *Service) complete(
	ctx context.Context,
	p *Purchase,
	sig Signal,
) (*ReconcileResult, error) {
	at := s.now()

	var (
		current *Purchase
		won     bool
		granted int64
	)

	err := s.store.InTx(ctx, func(tx Store) error {
		updated, changed, err := tx.Purchases().MarkCompleted(ctx, p.ID, sig.ProviderTransactionID, at)
		if err != nil {
			return err
		}
		current, won = updated, changed
		if !changed {
			return nil
		}

		if err := s.withItems(ctx, tx, current); err != nil {
			return err
		}

		granted, err = tx.Entitlements().Grant(ctx, current.UserID, current.ID, current.ProductIDs(), at)
		if err != nil {
			return err
		}

		return tx.Activity().Append(ctx, activity.Entry{
			UserID: current.UserID,
			Action: activity.ActionPurchaseCompleted,
			Details: map[string]any{
				"purchase_id":          current.ID,
				"source":               string(sig.Source),
				"transaction_id":       current.Transaction(),
				"entitlements_granted": granted,
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("complete purchase %s: %w", p.ID, err)
	}

	if !won {
		return s.settled(ctx, current, sig, VerdictSuccess)
	}

	core.AddSpanEvent(ctx, "entitlements.granted", attribute.Int64("count", granted))
	s.logger.InfoContext(ctx, "purchase completed",
		"purchase_id", current.ID,
		"user_id", current.UserID,
		"source", sig.Source,
		"entitlements_granted", granted,
	)

	s.sendReceipt(ctx, current)

	return &ReconcileResult{Purchase: current, Verdict: VerdictSuccess, Outcome: OutcomeTransitioned}, nil
}

func (s *Service) fail(
	ctx context.Context,
	p *Purchase,
	sig Signal,
	reason string,
) (*ReconcileResult, error) {
	at := s.now()

	var (
		current *Purchase
		won     bool
	)

	err := s.store.InTx(ctx, func(tx Store) error {
		updated, changed, err := tx.Purchases().MarkFailed(ctx, p.ID, reason, at)
		if err != nil {
			return err
		}
		current, won = updated, changed
		if !changed {
			return nil
		}

		return tx.Activity().Append(ctx, activity.Entry{
			UserID: current.UserID,
			Action: activity.ActionPurchaseFailed,
			Details: map[string]any{
				"purchase_id":     current.ID,
				"source":          string(sig.Source),
				"reported_status": sig.ReportedStatus,
				"reason":          reason,
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("fail purchase %s: %w", p.ID, err)
	}

	if !won {
		return s.settled(ctx, current, sig, VerdictFailure)
	}

	s.logger.InfoContext(ctx, "purchase failed",
		"purchase_id", current.ID,
		"user_id", current.UserID,
		"source", sig.Source,
		"reason", reason,
	)

	return &ReconcileResult{Purchase: current, Verdict: VerdictFailure, Outcome: OutcomeTransitioned}, nil
}

// HandleCallback reconciles a provider notification. Callbacks that name
// the purchase only through the provider reference are resolved by any
// intent reference ever attached to it.
func (s *Service) HandleCallback(ctx context.Context, cb Callback) (*ReconcileResult, error) {
	purchaseID := cb.PurchaseID
	if purchaseID == "" {
		if cb.ProviderReference == "" {
			return nil, ErrPurchaseNotFound
		}

		p, err := s.store.Purchases().GetByTransactionID(ctx, cb.ProviderReference)
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrPurchaseNotFound
		}
		if err != nil {
			return nil, err
		}
		purchaseID = p.ID
	}

	txID := cb.ProviderTransactionID
	if txID == "" {
		txID = cb.ProviderReference
	}

	return s.Reconcile(ctx, Signal{
		Source:                SourceCallback,
		PurchaseID:            purchaseID,
		ReportedStatus:        cb.RawStatus,
		ProviderTransactionID: txID,
	})
}

// PollStatus is the owner's status check. While the purchase is PENDING
// with a live intent it asks the provider too, so a lost callback does not
// strand the purchase.
func (s *Service) PollStatus(ctx context.Context, purchaseID, userID string) (*Purchase, error) {
	p, err := s.load(ctx, s.store, purchaseID)
	if err != nil {
		return nil, err
	}
	if !p.IsOwnedBy(userID) {
		return nil, ErrUnauthorized
	}

	if p.PaymentStatus != StatusPending || p.Transaction() == "" || s.gateway == nil {
		return p, nil
	}

	raw, err := s.gateway.GetStatus(ctx, p.PaymentMethod, p.Transaction())
	if err != nil {
		s.logger.WarnContext(ctx, "provider status lookup failed",
			"purchase_id", p.ID,
			"reference", p.Transaction(),
			"error", err,
		)
		return p, nil
	}

	verdict := Normalize(p.PaymentMethod, raw)
	if verdict == VerdictPending {
		return p, nil
	}

	res, err := s.apply(ctx, p, Signal{
		Source:                SourcePoll,
		PurchaseID:            p.ID,
		UserID:                userID,
		ReportedStatus:        raw,
		ProviderTransactionID: p.Transaction(),
	}, verdict)
	if errors.Is(err, ErrPurchaseClosed) {
		return s.load(ctx, s.store, p.ID)
	}
	if err != nil {
		return nil, err
	}
	return res.Purchase, nil
}

// ManualVerify lets the owner assert payment. It is meant for the sandbox
// gateway and is refused unless enabled.
func (s *Service) ManualVerify(ctx context.Context, purchaseID, userID string) (*ReconcileResult, error) {
	if !s.settings.ManualVerifyEnabled {
		return nil, ErrManualVerifyDisabled
	}

	return s.Reconcile(ctx, Signal{
		Source:         SourceManual,
		PurchaseID:     purchaseID,
		UserID:         userID,
		ReportedStatus: manualStatus,
	})
}

// ExpireStale fails one batch of PENDING purchases whose payment window has
// closed. Rows that settle concurrently are skipped. It returns how many
// purchases it failed.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	ctx, span := core.StartSpan(ctx, tracerName, "purchase.expire_stale")
	defer span.End()

	now := s.now()
	stale, err := s.store.Purchases().ListExpiredPending(
		ctx,
		now.Add(-s.settings.ExpiryGrace),
		now.Add(-s.settings.UnpaidTTL),
		s.settings.ExpiryBatchSize,
	)
	if err != nil {
		core.SetSpanError(ctx, err)
		return 0, err
	}

	expired := 0
	for i := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}

		p := &stale[i]
		res, err := s.fail(ctx, p, Signal{
			Source:         SourceExpiry,
			PurchaseID:     p.ID,
			ReportedStatus: "EXPIRED",
		}, expiredReason)
		if err != nil {
			s.logger.WarnContext(ctx, "expire purchase failed",
				"purchase_id", p.ID,
				"error", err,
			)
			continue
		}
		if res.Outcome == OutcomeTransitioned {
			expired++
		}
	}

	span.SetAttributes(attribute.Int("purchase.expired", expired))
	return expired, nil
}

// sendReceipt delivers the confirmation after the completing transaction
// has committed. Delivery errors are logged and never surface to the caller.
func (s *Service) sendReceipt(ctx context.Context, p *Purchase) {
	if s.receipts == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), receiptTimeout)
		defer cancel()

		receipt, err := s.buildReceipt(rctx, p)
		if err != nil {
			s.logger.WarnContext(rctx, "build receipt failed", "purchase_id", p.ID, "error", err)
			return
		}
		if receipt.ToEmail == "" {
			s.logger.InfoContext(rctx, "receipt skipped, no email on file", "purchase_id", p.ID)
			return
		}

		if err := s.receipts.SendReceipt(rctx, receipt); err != nil {
			s.logger.WarnContext(rctx, "send receipt failed", "purchase_id", p.ID, "error", err)
			return
		}
		s.logger.InfoContext(rctx, "receipt sent", "purchase_id", p.ID)
	}()
}

func (s *Service) buildReceipt(ctx context.Context, p *Purchase) (notify.Receipt, error) {
	r := notify.Receipt{
		PurchaseID:    p.ID,
		ToName:        p.ContactName,
		ToEmail:       p.ContactEmail,
		Currency:      s.settings.Currency,
		Total:         p.TotalAmount,
		TransactionID: p.Transaction(),
	}
	if p.CompletedAt != nil {
		r.CompletedAt = *p.CompletedAt
	}

	if r.ToEmail == "" && s.contacts != nil {
		name, email, err := s.contacts.Contact(ctx, p.UserID)
		if err != nil {
			return r, err
		}
		r.ToEmail = email
		if r.ToName == "" {
			r.ToName = name
		}
	}

	products, err := s.store.Products().ListByIDs(ctx, p.ProductIDs())
	if err != nil {
		return r, err
	}
	titles := make(map[string]string, len(products))
	for _, prod := range products {
		titles[prod.ID] = prod.Title
	}

	for _, item := range p.Items {
		r.Lines = append(r.Lines, notify.Line{
			Title:     titles[item.ProductID],
			Quantity:  item.Quantity,
			UnitPrice: item.PriceAtPurchase,
		})
	}

	return r, nil
}
