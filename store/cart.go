package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"stockscan/model"
	"stockscan/notify"
)

// CartStore aggregates scanned products into quantity-bearing lines keyed
// by barcode, writes every mutation through to durable storage, and drives
// commit-to-backend. A line leaves the cart only after the backend has
// acknowledged the stock deduction.
type CartStore struct {
	mu    sync.Mutex
	lines []model.CartLine

	// per-barcode mutexes so two lookups resolving out of order cannot
	// both append instead of one incrementing. Keys are barcode -> *sync.Mutex.
	locks sync.Map

	remote   Committer
	snaps    Snapshots
	notifier notify.Notifier
}

// NewCartStore recovers the staged cart from durable storage and returns
// the store. remote and snaps are required; notifier may be notify.Nop{}.
func NewCartStore(ctx context.Context, remote Committer, snaps Snapshots, notifier notify.Notifier) (*CartStore, error) {
	c := &CartStore{remote: remote, snaps: snaps, notifier: notifier}

	payload, err := snaps.Read(ctx, KeyCartLines)
	if err != nil {
		return nil, fmt.Errorf("recover cart: %w", err)
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &c.lines); err != nil {
			return nil, fmt.Errorf("recover cart: %w", err)
		}
	}
	return c, nil
}

// helper: acquire the per-barcode lock. Returns the unlock func.
func (c *CartStore) lockForBarcode(barcode string) func() {
	if v, ok := c.locks.Load(barcode); ok {
		m := v.(*sync.Mutex)
		m.Lock()
		return func() { m.Unlock() }
	}

	m := &sync.Mutex{}
	actual, _ := c.locks.LoadOrStore(barcode, m)
	mtx := actual.(*sync.Mutex)
	mtx.Lock()
	return func() { mtx.Unlock() }
}

// persistLocked writes the current lines through to durable storage.
// Callers hold c.mu, so the stored form never diverges from memory beyond
// the duration of one mutation.
func (c *CartStore) persistLocked(ctx context.Context) error {
	payload, err := json.Marshal(c.lines)
	if err != nil {
		return err
	}
	return c.snaps.Write(ctx, KeyCartLines, payload)
}

func (c *CartStore) findLocked(lineID string) int {
	for i := range c.lines {
		if c.lines[i].ID == lineID {
			return i
		}
	}
	return -1
}

// Lines returns a display copy of the cart.
func (c *CartStore) Lines() []model.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// LookupAndMerge resolves an accepted scan: it fetches the product snapshot
// for barcode, then either increments the existing line for that barcode or
// appends a new line with quantity 1. fresh, when non-nil, is consulted
// after the lookup resolves; a false result discards the scan with
// ErrStaleScan and leaves the cart untouched.
//
// Mutations for the same barcode are serialized; across different barcodes
// no ordering is guaranteed.
func (c *CartStore) LookupAndMerge(ctx context.Context, barcode string, fresh func() bool) (model.CartLine, error) {
	if barcode == "" {
		return model.CartLine{}, &ValidationError{Reason: "barcode required"}
	}

	unlock := c.lockForBarcode(barcode)
	defer unlock()

	p, err := c.remote.FetchProduct(ctx, barcode)
	if err != nil {
		c.notifier.Buzz()
		c.notifier.Toast(err.Error())
		return model.CartLine{}, err
	}
	if fresh != nil && !fresh() {
		return model.CartLine{}, ErrStaleScan
	}

	c.mu.Lock()
	var line model.CartLine
	merged := false
	for i := range c.lines {
		if c.lines[i].Barcode == barcode {
			c.lines[i].Quantity++
			line = c.lines[i]
			merged = true
			break
		}
	}
	if !merged {
		line = model.CartLine{
			ID:       uuid.NewString(),
			Barcode:  barcode,
			Name:     p.Name,
			Cost:     p.Cost,
			Price:    p.Price,
			ImageURL: p.ImageURL,
			Quantity: 1,
		}
		c.lines = append(c.lines, line)
	}
	err = c.persistLocked(ctx)
	c.mu.Unlock()
	if err != nil {
		return line, err
	}

	c.notifier.Toast(fmt.Sprintf("%s x%d", line.Name, line.Quantity))
	return line, nil
}

// EditQuantity updates a line's quantity from raw user input. The empty
// string is accepted as a transient state while the user types: the line is
// parked at quantity 0, which CommitLine refuses, so the parked state can
// never reach the backend.
func (c *CartStore) EditQuantity(ctx context.Context, lineID, raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.findLocked(lineID)
	if idx < 0 {
		return ErrLineNotFound
	}

	qty := 0
	if raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return &ValidationError{Reason: "quantity must be a non-negative whole number"}
		}
		qty = n
	}

	c.lines[idx].Quantity = qty
	return c.persistLocked(ctx)
}

// RemoveLine deletes a line locally. No network call is made.
func (c *CartStore) RemoveLine(ctx context.Context, lineID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.findLocked(lineID)
	if idx < 0 {
		return ErrLineNotFound
	}
	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
	return c.persistLocked(ctx)
}

// CommitLine deducts the line's quantity from backend stock and, only on
// acknowledged success, removes the line locally. On any failure the line
// is left exactly as it was, so retrying is safe.
func (c *CartStore) CommitLine(ctx context.Context, lineID string) error {
	c.mu.Lock()
	idx := c.findLocked(lineID)
	if idx < 0 {
		c.mu.Unlock()
		return ErrLineNotFound
	}
	barcode := c.lines[idx].Barcode
	c.mu.Unlock()

	// Hold the barcode lock so a concurrent merge cannot slip between the
	// quantity read and the deduction.
	unlock := c.lockForBarcode(barcode)
	defer unlock()

	c.mu.Lock()
	idx = c.findLocked(lineID)
	if idx < 0 {
		c.mu.Unlock()
		return ErrLineNotFound
	}
	line := c.lines[idx]
	c.mu.Unlock()

	if line.Quantity <= 0 {
		return &ValidationError{Reason: "quantity must be a positive whole number"}
	}

	if err := c.remote.DeductStock(ctx, line.Barcode, line.Quantity); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	idx = c.findLocked(lineID)
	if idx < 0 {
		return nil
	}
	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
	return c.persistLocked(ctx)
}
