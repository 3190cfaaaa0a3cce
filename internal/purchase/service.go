// AngelaMos | 2026
// service.go

package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/templates/checkout-backend/internal/activity"
	"github.com/carterperez-dev/templates/checkout-backend/internal/core"
	"github.com/carterperez-dev/templates/checkout-backend/internal/gateway"
	"github.com/carterperez-dev/templates/checkout-backend/internal/notify"
)

const (
	tracerName = "purchase"

	MinQuantity      = 1
	MaxQuantity      = 100
	MaxLineItems     = 50
	receiptTimeout   = 30 * time.Second
	defaultCurrency  = "IDR"
	defaultUnpaidTTL = 24 * time.Hour
)

// ContactResolver looks up where a receipt goes when the purchase carries
// no contact email.
type ContactResolver interface {
	Contact(ctx context.Context, userID string) (name, email string, err error)
}

type Settings struct {
	Currency            string
	PollInterval        time.Duration
	ClientWatchdog      time.Duration
	UnpaidTTL           time.Duration
	ExpiryGrace         time.Duration
	ExpiryBatchSize     int
	ManualVerifyEnabled bool
}

type Dependencies struct {
	Store    Store
	Gateway  gateway.Gateway
	Receipts notify.Sender
	Contacts ContactResolver
	Logger   *slog.Logger
	Settings Settings
	Now      func() time.Time
}

type Service struct {
	store    Store
	gateway  gateway.Gateway
	receipts notify.Sender
	contacts ContactResolver
	logger   *slog.Logger
	settings Settings
	now      func() time.Time

	wg sync.WaitGroup
}

func NewService(deps Dependencies) *Service {
	s := &Service{
		store:    deps.Store,
		gateway:  deps.Gateway,
		receipts: deps.Receipts,
		contacts: deps.Contacts,
		logger:   deps.Logger,
		settings: deps.Settings,
		now:      deps.Now,
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.settings.Currency == "" {
		s.settings.Currency = defaultCurrency
	}
	if s.settings.ExpiryBatchSize <= 0 {
		s.settings.ExpiryBatchSize = 100
	}
	if s.settings.UnpaidTTL <= 0 {
		s.settings.UnpaidTTL = defaultUnpaidTTL
	}
	if s.settings.ExpiryGrace < 0 {
		s.settings.ExpiryGrace = 0
	}

	return s
}

// Wait blocks until every receipt dispatched so far has been attempted.
func (s *Service) Wait() {
	s.wg.Wait()
}

type ItemInput struct {
	ProductID string
	Quantity  int
}

type CreateInput struct {
	UserID    string
	Items     []ItemInput
	Method    gateway.Method
	Contact   Contact
	IPAddress string
	UserAgent string
}

// CreatePurchase prices the cart from the current product rows and stores
// a PENDING purchase. Duplicate product lines are merged.
func (s *Service) CreatePurchase(ctx context.Context, in CreateInput) (*Purchase, error) {
	ctx, span := core.StartSpan(ctx, tracerName, "purchase.create",
		attribute.String("user.id", in.UserID),
		attribute.Int("purchase.lines", len(in.Items)),
	)
	defer span.End()

	lines, err := mergeItems(in)
	if err != nil {
		return nil, err
	}

	method := in.Method
	if method == "" {
		method = gateway.MethodInvoice
	}

	p := &Purchase{
		ID:            uuid.New().String(),
		UserID:        in.UserID,
		PaymentMethod: method,
		PaymentStatus: StatusPending,
		ContactName:   strings.TrimSpace(in.Contact.Name),
		ContactEmail:  strings.TrimSpace(in.Contact.Email),
		ContactPhone:  strings.TrimSpace(in.Contact.Phone),
		IPAddress:     in.IPAddress,
		UserAgent:     in.UserAgent,
	}

	err = s.store.InTx(ctx, func(tx Store) error {
		ids := make([]string, len(lines))
		for i, l := range lines {
			ids[i] = l.ProductID
		}

		products, err := tx.Products().ListForCheckout(ctx, ids)
		if err != nil {
			return err
		}

		prices := make(map[string]int64, len(products))
		for _, prod := range products {
			if prod.IsPurchasable() {
				prices[prod.ID] = prod.Price
			}
		}

		var unavailable []string
		for _, id := range ids {
			if _, ok := prices[id]; !ok {
				unavailable = append(unavailable, id)
			}
		}
		if len(unavailable) > 0 {
			return &ProductUnavailableError{ProductIDs: unavailable}
		}

		p.Items = make([]Item, 0, len(lines))
		p.TotalAmount = 0
		for _, l := range lines {
			item := Item{
				ID:              uuid.New().String(),
				ProductID:       l.ProductID,
				Quantity:        l.Quantity,
				PriceAtPurchase: prices[l.ProductID],
			}
			p.Items = append(p.Items, item)
			p.TotalAmount += item.LineTotal()
		}

		if err := tx.Purchases().Create(ctx, p); err != nil {
			return err
		}

		return tx.Activity().Append(ctx, activity.Entry{
			UserID: p.UserID,
			Action: activity.ActionPurchaseCreated,
			Details: map[string]any{
				"purchase_id":  p.ID,
				"total_amount": p.TotalAmount,
				"items":        len(p.Items),
			},
		})
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "purchase created",
		"purchase_id", p.ID,
		"user_id", p.UserID,
		"total_amount", p.TotalAmount,
		"items", len(p.Items),
	)

	return p, nil
}

func mergeItems(in CreateInput) ([]ItemInput, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	if len(in.Items) > MaxLineItems {
		return nil, fmt.Errorf("%w: at most %d items per purchase", ErrValidation, MaxLineItems)
	}

	index := make(map[string]int, len(in.Items))
	merged := make([]ItemInput, 0, len(in.Items))

	for _, item := range in.Items {
		id := strings.TrimSpace(item.ProductID)
		if _, err := uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("%w: invalid product id %q", ErrValidation, item.ProductID)
		}
		if item.Quantity < MinQuantity || item.Quantity > MaxQuantity {
			return nil, fmt.Errorf(
				"%w: quantity for %s must be between %d and %d",
				ErrValidation, id, MinQuantity, MaxQuantity,
			)
		}

		if i, ok := index[id]; ok {
			merged[i].Quantity += item.Quantity
			if merged[i].Quantity > MaxQuantity {
				return nil, fmt.Errorf(
					"%w: quantity for %s must be between %d and %d",
					ErrValidation, id, MinQuantity, MaxQuantity,
				)
			}
			continue
		}

		index[id] = len(merged)
		merged = append(merged, ItemInput{ProductID: id, Quantity: item.Quantity})
	}

	return merged, nil
}

// Get returns a purchase with its items. Only the owner may read it.
func (s *Service) Get(ctx context.Context, purchaseID, userID string) (*Purchase, error) {
	p, err := s.load(ctx, s.store, purchaseID)
	if err != nil {
		return nil, err
	}
	if !p.IsOwnedBy(userID) {
		return nil, ErrUnauthorized
	}

	if err := s.withItems(ctx, s.store, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ListForUser(
	ctx context.Context,
	userID string,
	page, pageSize int,
) ([]Purchase, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	return s.store.Purchases().ListByUser(ctx, userID, pageSize, (page-1)*pageSize)
}

// Retry opens a new PENDING purchase with the same lines as a FAILED one.
// Prices are taken from the products as they are now.
func (s *Service) Retry(
	ctx context.Context,
	purchaseID, userID, ipAddress, userAgent string,
) (*Purchase, error) {
	prev, err := s.Get(ctx, purchaseID, userID)
	if err != nil {
		return nil, err
	}

	switch prev.PaymentStatus {
	case StatusFailed:
	case StatusPending:
		return nil, fmt.Errorf("%w: purchase %s is still awaiting payment", ErrPurchaseStillPending, prev.ID)
	default:
		return nil, ErrPurchaseClosed
	}

	items := make([]ItemInput, len(prev.Items))
	for i, item := range prev.Items {
		items[i] = ItemInput{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	return s.CreatePurchase(ctx, CreateInput{
		UserID: userID,
		Items:  items,
		Method: prev.PaymentMethod,
		Contact: Contact{
			Name:  prev.ContactName,
			Email: prev.ContactEmail,
			Phone: prev.ContactPhone,
		},
		IPAddress: ipAddress,
		UserAgent: userAgent,
	})
}

func (s *Service) load(ctx context.Context, st Store, id string) (*Purchase, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrPurchaseNotFound
	}

	p, err := st.Purchases().GetByID(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrPurchaseNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) withItems(ctx context.Context, st Store, p *Purchase) error {
	items, err := st.Purchases().ListItems(ctx, p.ID)
	if err != nil {
		return err
	}
	p.Items = items
	return nil
}

// record appends to the activity log outside any transaction. Failures are
// logged and swallowed.
func (s *Service) record(ctx context.Context, entry activity.Entry) {
	if err := s.store.Activity().Append(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "activity append failed",
			"action", entry.Action,
			"error", err,
		)
	}
}
