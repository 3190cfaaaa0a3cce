// AngelaMos | 2026
// stub_test.go

package purchase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carterperez-dev/templates/checkout-backend/internal/activity"
	"github.com/carterperez-dev/templates/checkout-backend/internal/core"
	"github.com/carterperez-dev/templates/checkout-backend/internal/entitlement"
	"github.com/carterperez-dev/templates/checkout-backend/internal/gateway"
	"github.com/carterperez-dev/templates/checkout-backend/internal/notify"
	"github.com/carterperez-dev/templates/checkout-backend/internal/product"
)

type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	products     map[string]product.Product
	purchases    map[string]Purchase
	items        map[string][]Item
	entitlements map[string]entitlement.Entitlement
	intents      map[string]string
	activity     []activity.Entry
}

func newMemDB() *memDB {
	return &memDB{
		products:     make(map[string]product.Product),
		purchases:    make(map[string]Purchase),
		items:        make(map[string][]Item),
		entitlements: make(map[string]entitlement.Entitlement),
		intents:      make(map[string]string),
	}
}

func (db *memDB) addProduct(id, title string, price int64, status string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.products[id] = product.Product{ID: id, Title: title, Price: price, Status: status}
}

func (db *memDB) setProductStatus(id, status string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p := db.products[id]
	p.Status = status
	db.products[id] = p
}

func (db *memDB) entitlementsFor(userID string) []entitlement.Entitlement {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []entitlement.Entitlement
	for _, e := range db.entitlements {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

func (db *memDB) actions(action activity.Action) int {
	db.mu.Lock()
	defer db.mu.Unlock()

	n := 0
	for _, e := range db.activity {
		if e.Action == action {
			n++
		}
	}
	return n
}

type memStore struct {
	db *memDB
}

func (s *memStore) Purchases() Repository { return &memPurchases{db: s.db} }
func (s *memStore) Products() product.Repository { return &memProducts{db: s.db} }
func (s *memStore) Entitlements() entitlement.Repository { return &memEntitlements{db: s.db} }
func (s *memStore) Activity() activity.Repository { return &memActivity{db: s.db} }

func (s *memStore) InTx(_ context.Context, fn func(tx Store) error) error {
	s.db.txMu.Lock()
	defer s.db.txMu.Unlock()
	return fn(s)
}

type memPurchases struct {
	db *memDB
}

func (r *memPurchases) Create(_ context.Context, p *Purchase) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.purchases[p.ID]; ok {
		return core.ErrDuplicateKey
	}

	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	for i := range p.Items {
		p.Items[i].PurchaseID = p.ID
		p.Items[i].CreatedAt = now
	}

	stored := *p
	stored.Items = nil
	r.db.purchases[p.ID] = stored
	r.db.items[p.ID] = append([]Item(nil), p.Items...)
	return nil
}

func (r *memPurchases) GetByID(_ context.Context, id string) (*Purchase, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.purchases[id]
	if !ok {
		return nil, fmt.Errorf("get purchase: %w", core.ErrNotFound)
	}
	return &p, nil
}

func (r *memPurchases) GetByTransactionID(_ context.Context, txID string) (*Purchase, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, p := range r.db.purchases {
		if p.Transaction() == txID {
			return &p, nil
		}
	}
	if id, ok := r.db.intents[txID]; ok {
		p := r.db.purchases[id]
		return &p, nil
	}
	return nil, fmt.Errorf("get purchase by transaction: %w", core.ErrNotFound)
}

func (r *memPurchases) ListItems(_ context.Context, purchaseID string) ([]Item, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return append([]Item(nil), r.db.items[purchaseID]...), nil
}

func (r *memPurchases) ListByUser(
	_ context.Context,
	userID string,
	limit, offset int,
) ([]Purchase, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var all []Purchase
	for _, p := range r.db.purchases {
		if p.UserID == userID {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if offset >= total {
		return []Purchase{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *memPurchases) AttachIntent(
	_ context.Context,
	id string,
	method gateway.Method,
	reference string,
	expiresAt time.Time,
) (*Purchase, bool, error) {
	return r.cas(id, func(p *Purchase) {
		p.PaymentMethod = method
		p.TransactionID = &reference
		p.ExpiresAt = &expiresAt
		r.db.intents[reference] = id
	})
}

func (r *memPurchases) MarkCompleted(
	_ context.Context,
	id, providerTxID string,
	at time.Time,
) (*Purchase, bool, error) {
	return r.cas(id, func(p *Purchase) {
		p.PaymentStatus = StatusCompleted
		p.CompletedAt = &at
		if p.TransactionID == nil && providerTxID != "" {
			p.TransactionID = &providerTxID
		}
	})
}

func (r *memPurchases) MarkFailed(
	_ context.Context,
	id, reason string,
	at time.Time,
) (*Purchase, bool, error) {
	return r.cas(id, func(p *Purchase) {
		p.PaymentStatus = StatusFailed
		p.FailedAt = &at
		p.FailureReason = &reason
	})
}

func (r *memPurchases) ListExpiredPending(
	_ context.Context,
	intentCutoff, unpaidCutoff time.Time,
	limit int,
) ([]Purchase, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []Purchase
	for _, p := range r.db.purchases {
		if p.PaymentStatus != StatusPending {
			continue
		}
		if p.ExpiresAt != nil && p.ExpiresAt.Before(intentCutoff) {
			out = append(out, p)
			continue
		}
		if p.ExpiresAt == nil && p.CreatedAt.Before(unpaidCutoff) {
			out = append(out, p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memPurchases) cas(id string, apply func(p *Purchase)) (*Purchase, bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.purchases[id]
	if !ok {
		return nil, false, fmt.Errorf("transition: %w", core.ErrNotFound)
	}
	if p.PaymentStatus != StatusPending {
		return &p, false, nil
	}

	apply(&p)
	p.UpdatedAt = time.Now()
	r.db.purchases[id] = p

	out := p
	return &out, true, nil
}

type memProducts struct {
	db *memDB
}

func (r *memProducts) ListForCheckout(ctx context.Context, ids []string) ([]product.Product, error) {
	return r.ListByIDs(ctx, ids)
}

func (r *memProducts) ListByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []product.Product
	for _, id := range ids {
		if p, ok := r.db.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memProducts) UpdateStatus(_ context.Context, id, status string) (*product.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.products[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	p.Status = status
	r.db.products[id] = p
	return &p, nil
}

type memEntitlements struct {
	db *memDB
}

func (r *memEntitlements) Grant(
	_ context.Context,
	userID, purchaseID string,
	productIDs []string,
	at time.Time,
) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var granted int64
	for _, pid := range productIDs {
		key := userID + "|" + pid
		if _, ok := r.db.entitlements[key]; ok {
			continue
		}
		r.db.entitlements[key] = entitlement.Entitlement{
			UserID:      userID,
			ProductID:   pid,
			PurchaseID:  purchaseID,
			PurchasedAt: at,
		}
		granted++
	}
	return granted, nil
}

func (r *memEntitlements) ListByUser(_ context.Context, userID string) ([]entitlement.OwnedProduct, error) {
	var out []entitlement.OwnedProduct
	for _, e := range r.db.entitlementsFor(userID) {
		out = append(out, entitlement.OwnedProduct{
			ProductID:   e.ProductID,
			PurchaseID:  e.PurchaseID,
			PurchasedAt: e.PurchasedAt,
		})
	}
	return out, nil
}

type memActivity struct {
	db *memDB
}

func (r *memActivity) Append(_ context.Context, entry activity.Entry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.activity = append(r.db.activity, entry)
	return nil
}

type stubGateway struct {
	*gateway.Sandbox

	mu        sync.Mutex
	failNext  error
	statusErr error
	calls     map[gateway.Method]int
}

func newStubGateway() *stubGateway {
	return &stubGateway{Sandbox: gateway.NewSandbox(), calls: make(map[gateway.Method]int)}
}

func (g *stubGateway) record(m gateway.Method) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[m]++
	err := g.failNext
	g.failNext = nil
	return err
}

func (g *stubGateway) CreateInvoice(ctx context.Context, req gateway.IntentRequest) (*gateway.Intent, error) {
	if err := g.record(gateway.MethodInvoice); err != nil {
		return nil, err
	}
	return g.Sandbox.CreateInvoice(ctx, req)
}

func (g *stubGateway) CreateQRCode(ctx context.Context, req gateway.IntentRequest) (*gateway.Intent, error) {
	if err := g.record(gateway.MethodQRIS); err != nil {
		return nil, err
	}
	return g.Sandbox.CreateQRCode(ctx, req)
}

func (g *stubGateway) GetStatus(ctx context.Context, m gateway.Method, ref string) (string, error) {
	g.mu.Lock()
	err := g.statusErr
	g.mu.Unlock()
	if err != nil {
		return "", err
	}
	return g.Sandbox.GetStatus(ctx, m, ref)
}

type recordingSender struct {
	mu       sync.Mutex
	receipts []notify.Receipt
	err      error
}

func (s *recordingSender) SendReceipt(_ context.Context, r notify.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, r)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.receipts)
}
