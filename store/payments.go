package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockscan/model"
)

// PaymentQueueStore stages free-form daily expense items until they are
// confirmed against the backend. Same lifecycle as the cart: an item leaves
// the queue only after the backend has acknowledged the payment, or on an
// explicit local delete. There is no merge step — every Add creates a new
// item.
type PaymentQueueStore struct {
	mu    sync.Mutex
	items []model.PaymentItem

	remote Committer
	snaps  Snapshots
}

// NewPaymentQueueStore recovers the staged queue from durable storage.
func NewPaymentQueueStore(ctx context.Context, remote Committer, snaps Snapshots) (*PaymentQueueStore, error) {
	p := &PaymentQueueStore{remote: remote, snaps: snaps}

	payload, err := snaps.Read(ctx, KeyPaymentQueue)
	if err != nil {
		return nil, fmt.Errorf("recover payment queue: %w", err)
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p.items); err != nil {
			return nil, fmt.Errorf("recover payment queue: %w", err)
		}
	}
	return p, nil
}

func (p *PaymentQueueStore) persistLocked(ctx context.Context) error {
	payload, err := json.Marshal(p.items)
	if err != nil {
		return err
	}
	return p.snaps.Write(ctx, KeyPaymentQueue, payload)
}

func (p *PaymentQueueStore) findLocked(id string) int {
	for i := range p.items {
		if p.items[i].ID == id {
			return i
		}
	}
	return -1
}

// Items returns a display copy of the queue.
func (p *PaymentQueueStore) Items() []model.PaymentItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.PaymentItem, len(p.items))
	copy(out, p.items)
	return out
}

// Add stages a new expense item. No network call is made.
func (p *PaymentQueueStore) Add(ctx context.Context, name string, amount float64) (model.PaymentItem, error) {
	if name == "" {
		return model.PaymentItem{}, &ValidationError{Reason: "name required"}
	}
	if amount <= 0 {
		return model.PaymentItem{}, &ValidationError{Reason: "amount must be > 0"}
	}

	item := model.PaymentItem{ID: uuid.NewString(), Name: name, Amount: amount}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = append(p.items, item)
	if err := p.persistLocked(ctx); err != nil {
		return item, err
	}
	return item, nil
}

// Confirm records the item as today's payment on the backend and, only on
// acknowledged success, removes it locally. On any failure the item is left
// exactly as it was.
func (p *PaymentQueueStore) Confirm(ctx context.Context, id string) error {
	p.mu.Lock()
	idx := p.findLocked(id)
	if idx < 0 {
		p.mu.Unlock()
		return ErrItemNotFound
	}
	item := p.items[idx]
	p.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	if err := p.remote.CreatePayment(ctx, item.Name, item.Amount, today); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	idx = p.findLocked(id)
	if idx < 0 {
		return nil
	}
	p.items = append(p.items[:idx], p.items[idx+1:]...)
	return p.persistLocked(ctx)
}

// Delete removes an item locally. No network call is made.
func (p *PaymentQueueStore) Delete(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.findLocked(id)
	if idx < 0 {
		return ErrItemNotFound
	}
	p.items = append(p.items[:idx], p.items[idx+1:]...)
	return p.persistLocked(ctx)
}
