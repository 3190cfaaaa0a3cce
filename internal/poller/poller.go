// AngelaMos | 2026
// poller.go

package poller

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	DefaultInterval = 3 * time.Second
	DefaultDeadline = 15 * time.Minute
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeCancelled Outcome = "cancelled"
)

const (
	statusPending   = "PENDING"
	statusCompleted = "COMPLETED"
	statusFailed    = "FAILED"
)

var ErrStopped = errors.New("poller stopped")

type Status struct {
	PurchaseID    string     `json:"purchase_id"`
	Status        string     `json:"status"`
	TransactionID *string    `json:"transaction_id,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func (s *Status) terminal() (Outcome, bool) {
	if s == nil {
		return "", false
	}
	switch s.Status {
	case statusCompleted:
		return OutcomeCompleted, true
	case statusFailed:
		return OutcomeFailed, true
	}
	return "", false
}

// Client fetches the server view of a purchase.
type Client interface {
	Status(ctx context.Context, purchaseID string) (*Status, error)
	Verify(ctx context.Context, purchaseID string) (*Status, error)
}

type Config struct {
	Interval time.Duration
	Deadline time.Duration
	OnError  func(error)
	OnStatus func(*Status)
}

// Poller watches a purchase until it settles. The deadline is a client-side
// watchdog only: hitting it reports OutcomeTimedOut and leaves the purchase
// untouched on the server.
type Poller struct {
	client   Client
	interval time.Duration
	deadline time.Duration
	onError  func(error)
	onStatus func(*Status)
}

func New(client Client, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}

	return &Poller{
		client:   client,
		interval: cfg.Interval,
		deadline: cfg.Deadline,
		onError:  cfg.OnError,
		onStatus: cfg.OnStatus,
	}
}

type Result struct {
	Outcome Outcome
	Status  *Status
}

type Handle struct {
	purchaseID string
	client     Client
	cancel     context.CancelFunc
	done       chan struct{}

	once   sync.Once
	mu     sync.Mutex
	result Result
}

// Start begins polling in the background. The first check happens
// immediately, later ones every interval.
func (p *Poller) Start(ctx context.Context, purchaseID string) *Handle {
	ctx, cancel := context.WithCancel(ctx)

	h := &Handle{
		purchaseID: purchaseID,
		client:     p.client,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		defer cancel()
		h.settle(p.run(ctx, purchaseID))
	}()

	return h
}

func (p *Poller) run(ctx context.Context, purchaseID string) Result {
	deadline := time.NewTimer(p.deadline)
	defer deadline.Stop()

	tick := time.NewTimer(0)
	defer tick.Stop()

	var last *Status
	for {
		select {
		case <-ctx.Done():
			return Result{Outcome: OutcomeCancelled, Status: last}
		case <-deadline.C:
			return Result{Outcome: OutcomeTimedOut, Status: last}
		case <-tick.C:
		}

		status, err := p.client.Status(ctx, purchaseID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return Result{Outcome: OutcomeCancelled, Status: last}
			}
			if p.onError != nil {
				p.onError(err)
			}
		default:
			last = status
			if p.onStatus != nil {
				p.onStatus(status)
			}
			if outcome, ok := status.terminal(); ok {
				return Result{Outcome: outcome, Status: status}
			}
		}

		tick.Reset(p.interval)
	}
}

func (h *Handle) settle(res Result) {
	h.once.Do(func() {
		h.mu.Lock()
		h.result = res
		h.mu.Unlock()
	})
}

// Stop cancels polling and waits for the loop to exit.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result is meaningful once Done is closed.
func (h *Handle) Result() Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

// MarkAsPaid asks the server to verify the payment now. A terminal answer
// ends polling with that outcome.
func (h *Handle) MarkAsPaid(ctx context.Context) (*Status, error) {
	select {
	case <-h.done:
		return nil, ErrStopped
	default:
	}

	status, err := h.client.Verify(ctx, h.purchaseID)
	if err != nil {
		return nil, err
	}

	if outcome, ok := status.terminal(); ok {
		h.settle(Result{Outcome: outcome, Status: status})
		h.cancel()
	}
	return status, nil
}
