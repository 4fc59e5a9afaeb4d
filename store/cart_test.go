package store

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"stockscan/model"
	"stockscan/notify"
	"stockscan/remote"
	"stockscan/scanner"
)

// ---- fakeRemote implementing Committer for tests ----

type fakeRemote struct {
	FetchProductFn  func(ctx context.Context, barcode string) (model.Product, error)
	DeductStockFn   func(ctx context.Context, barcode string, qty int) error
	CreatePaymentFn func(ctx context.Context, name string, amount float64, date string) error
}

func (f *fakeRemote) FetchProduct(ctx context.Context, barcode string) (model.Product, error) {
	return f.FetchProductFn(ctx, barcode)
}

func (f *fakeRemote) DeductStock(ctx context.Context, barcode string, qty int) error {
	return f.DeductStockFn(ctx, barcode, qty)
}

func (f *fakeRemote) CreatePayment(ctx context.Context, name string, amount float64, date string) error {
	return f.CreatePaymentFn(ctx, name, amount, date)
}

func productFor(barcode string) model.Product {
	return model.Product{Barcode: barcode, Name: "p-" + barcode, Price: 20, Cost: 15}
}

func newTestCart(t *testing.T, rem Committer, snaps Snapshots) *CartStore {
	t.Helper()
	c, err := NewCartStore(context.Background(), rem, snaps, notify.Nop{})
	if err != nil {
		t.Fatalf("NewCartStore failed: %v", err)
	}
	return c
}

func storedCartLines(t *testing.T, snaps Snapshots) []model.CartLine {
	t.Helper()
	payload, err := snaps.Read(context.Background(), KeyCartLines)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var lines []model.CartLine
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &lines); err != nil {
			t.Fatalf("unmarshal snapshot: %v", err)
		}
	}
	return lines
}

// ---- tests ----

func TestLookupAndMergeAggregatesByBarcode(t *testing.T) {
	snaps := NewMemSnapshots()
	rem := &fakeRemote{FetchProductFn: func(_ context.Context, b string) (model.Product, error) {
		return productFor(b), nil
	}}
	cart := newTestCart(t, rem, snaps)

	for i := 0; i < 3; i++ {
		if _, err := cart.LookupAndMerge(context.Background(), "123", nil); err != nil {
			t.Fatalf("merge %d failed: %v", i, err)
		}
	}

	lines := cart.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected exactly one line per barcode, got %d", len(lines))
	}
	if lines[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", lines[0].Quantity)
	}
	if lines[0].Name != "p-123" {
		t.Fatalf("unexpected product name %q", lines[0].Name)
	}

	// write-through: durable snapshot matches memory after every mutation
	if stored := storedCartLines(t, snaps); !reflect.DeepEqual(stored, lines) {
		t.Fatalf("snapshot diverged from memory:\nstored %+v\nmemory %+v", stored, lines)
	}
}

func TestLookupNotFoundLeavesCartUnchanged(t *testing.T) {
	snaps := NewMemSnapshots()
	rem := &fakeRemote{FetchProductFn: func(_ context.Context, b string) (model.Product, error) {
		return model.Product{}, remote.ErrNotFound
	}}
	cart := newTestCart(t, rem, snaps)

	_, err := cart.LookupAndMerge(context.Background(), "000", nil)
	if !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := cart.Lines(); len(got) != 0 {
		t.Fatalf("expected unchanged cart, got %+v", got)
	}
	if stored := storedCartLines(t, snaps); len(stored) != 0 {
		t.Fatalf("expected nothing persisted, got %+v", stored)
	}
}

func TestEmptyBarcodeBlockedBeforeLookup(t *testing.T) {
	called := false
	rem := &fakeRemote{FetchProductFn: func(_ context.Context, b string) (model.Product, error) {
		called = true
		return productFor(b), nil
	}}
	cart := newTestCart(t, rem, NewMemSnapshots())

	_, err := cart.LookupAndMerge(context.Background(), "", nil)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if called {
		t.Fatal("expected no lookup for empty barcode")
	}
}

func TestStaleLookupDiscarded(t *testing.T) {
	snaps := NewMemSnapshots()
	rem := &fakeRemote{FetchProductFn: func(_ context.Context, b string) (model.Product, error) {
		return productFor(b), nil
	}}
	cart := newTestCart(t, rem, snaps)

	_, err := cart.LookupAndMerge(context.Background(), "123", func() bool { return false })
	if !errors.Is(err, ErrStaleScan) {
		t.Fatalf("expected ErrStaleScan, got %v", err)
	}
	if got := cart.Lines(); len(got) != 0 {
		t.Fatalf("expected stale result discarded, got %+v", got)
	}
}

func TestConcurrentLookupsSameBarcodeDoNotLoseUpdates(t *testing.T) {
	snaps := NewMemSnapshots()
	rem := &fakeRemote{FetchProductFn: func(_ context.Context, b string) (model.Product, error) {
		time.Sleep(10 * time.Millisecond) // let lookups overlap
		return productFor(b), nil
	}}
	cart := newTestCart(t, rem, snaps)

	const n = 5
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := cart.LookupAndMerge(context.Background(), "123", nil); err != nil {
				t.Errorf("merge failed: %v", err)
			}
		}()
	}
	wg.Wait()

	lines := cart.Lines()
	if len(lines) != 1 {
		t.Fatalf("lost update: expected one line, got %d", len(lines))
	}
	if lines[0].Quantity != n {
		t.Fatalf("expected quantity %d, got %d", n, lines[0].Quantity)
	}
}

func TestEditQuantity(t *testing.T) {
	snaps := NewMemSnapshots()
	rem := &fakeRemote{FetchProductFn: func(_ context.Context, b string) (model.Product, error) {
		return productFor(b), nil
	}}
	cart := newTestCart(t, rem, snaps)
	line, err := cart.LookupAndMerge(context.Background(), "123", nil)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	// the transient empty value parks the line at 0
	if err := cart.EditQuantity(context.Background(), line.ID, ""); err != nil {
		t.Fatalf("empty edit failed: %v", err)
	}
	if got := cart.Lines()[0].Quantity; got != 0 {
		t.Fatalf("expected parked quantity 0, got %d", got)
	}
	if stored := storedCartLines(t, snaps); stored[0].Quantity != 0 {
		t.Fatalf("expected parked state persisted, got %+v", stored)
	}

	// non-numeric and negative inputs are rejected
	var ve *ValidationError
	if err := cart.EditQuantity(context.Background(), line.ID, "abc"); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for non-numeric input, got %v", err)
	}
	if err := cart.EditQuantity(context.Background(), line.ID, "-2"); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for negative input, got %v", err)
	}

	// valid input updates and persists
	if err := cart.EditQuantity(context.Background(), line.ID, "7"); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if stored := storedCartLines(t, snaps); stored[0].Quantity != 7 {
		t.Fatalf("expected persisted quantity 7, got %+v", stored)
	}

	if err := cart.EditQuantity(context.Background(), "no-such-line", "1"); !errors.Is(err, ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}
}

func TestCommitQuantityBoundary(t *testing.T) {
	deducted := false
	rem := &fakeRemote{
		FetchProductFn: func(_ context.Context, b string) (model.Product, error) {
			return productFor(b), nil
		},
		DeductStockFn: func(_ context.Context, _ string, _ int) error {
			deducted = true
			return nil
		},
	}
	cart := newTestCart(t, rem, NewMemSnapshots())
	line, _ := cart.LookupAndMerge(context.Background(), "123", nil)

	// parked (empty) quantity blocks commit before any network call
	if err := cart.EditQuantity(context.Background(), line.ID, ""); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	var ve *ValidationError
	if err := cart.CommitLine(context.Background(), line.ID); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for zero quantity, got %v", err)
	}
	if deducted {
		t.Fatal("expected no deduction call for invalid quantity")
	}
}

func TestCommitFailureLeavesLineUntouched(t *testing.T) {
	snaps := NewMemSnapshots()
	rem := &fakeRemote{
		FetchProductFn: func(_ context.Context, b string) (model.Product, error) {
			return productFor(b), nil
		},
		DeductStockFn: func(_ context.Context, _ string, _ int) error {
			return &remote.BackendError{Status: 500, Message: "stock not enough"}
		},
	}
	cart := newTestCart(t, rem, snaps)
	cart.LookupAndMerge(context.Background(), "123", nil)
	cart.LookupAndMerge(context.Background(), "123", nil)
	before := cart.Lines()

	err := cart.CommitLine(context.Background(), before[0].ID)
	var be *remote.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if be.Message != "stock not enough" {
		t.Fatalf("expected verbatim backend message, got %q", be.Message)
	}

	after := cart.Lines()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("commit failure mutated state:\nbefore %+v\nafter  %+v", before, after)
	}
	if stored := storedCartLines(t, snaps); !reflect.DeepEqual(stored, before) {
		t.Fatalf("commit failure mutated snapshot: %+v", stored)
	}
}

func TestCommitSuccessRemovesLine(t *testing.T) {
	snaps := NewMemSnapshots()
	var gotBarcode string
	var gotQty int
	rem := &fakeRemote{
		FetchProductFn: func(_ context.Context, b string) (model.Product, error) {
			return productFor(b), nil
		},
		DeductStockFn: func(_ context.Context, barcode string, qty int) error {
			gotBarcode, gotQty = barcode, qty
			return nil
		},
	}
	cart := newTestCart(t, rem, snaps)
	line, _ := cart.LookupAndMerge(context.Background(), "123", nil)
	cart.LookupAndMerge(context.Background(), "123", nil)

	if err := cart.CommitLine(context.Background(), line.ID); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if gotBarcode != "123" || gotQty != 2 {
		t.Fatalf("expected DeductStock(123, 2), got (%s, %d)", gotBarcode, gotQty)
	}
	if got := cart.Lines(); len(got) != 0 {
		t.Fatalf("expected empty cart after commit, got %+v", got)
	}
	if stored := storedCartLines(t, snaps); len(stored) != 0 {
		t.Fatalf("expected committed line gone from snapshot, got %+v", stored)
	}
}

func TestRemoveLineIsLocalOnly(t *testing.T) {
	snaps := NewMemSnapshots()
	rem := &fakeRemote{
		FetchProductFn: func(_ context.Context, b string) (model.Product, error) {
			return productFor(b), nil
		},
		DeductStockFn: func(_ context.Context, _ string, _ int) error {
			t.Fatal("unexpected network call on local removal")
			return nil
		},
	}
	cart := newTestCart(t, rem, snaps)
	line, _ := cart.LookupAndMerge(context.Background(), "123", nil)

	if err := cart.RemoveLine(context.Background(), line.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if got := cart.Lines(); len(got) != 0 {
		t.Fatalf("expected empty cart, got %+v", got)
	}
}

func TestCartPersistenceRoundTrip(t *testing.T) {
	snaps := NewMemSnapshots()
	rem := &fakeRemote{FetchProductFn: func(_ context.Context, b string) (model.Product, error) {
		return productFor(b), nil
	}}
	cart := newTestCart(t, rem, snaps)
	cart.LookupAndMerge(context.Background(), "123", nil)
	cart.LookupAndMerge(context.Background(), "456", nil)
	cart.LookupAndMerge(context.Background(), "123", nil)
	before := cart.Lines()

	// simulate a reload: a fresh store recovers from the same snapshots
	reloaded := newTestCart(t, rem, snaps)
	if got := reloaded.Lines(); !reflect.DeepEqual(got, before) {
		t.Fatalf("round trip mismatch:\nbefore %+v\nafter  %+v", before, got)
	}
}

// Scenario: two decodes of the same code inside the cooldown yield one
// accepted scan; a third decode after the cooldown brings the quantity to
// two; committing deducts exactly that and empties the cart.
func TestScanToCommitFlow(t *testing.T) {
	snaps := NewMemSnapshots()
	var gotBarcode string
	var gotQty int
	rem := &fakeRemote{
		FetchProductFn: func(_ context.Context, b string) (model.Product, error) {
			return productFor(b), nil
		},
		DeductStockFn: func(_ context.Context, barcode string, qty int) error {
			gotBarcode, gotQty = barcode, qty
			return nil
		},
	}
	cart := newTestCart(t, rem, snaps)

	engine := scanner.New(scanner.Config{Cooldown: 50 * time.Millisecond, Continuous: true})
	src := scanner.NewPushSource()
	onEvent := func(code string, gen uint64) {
		fresh := func() bool { return engine.Generation() == gen }
		if _, err := cart.LookupAndMerge(context.Background(), code, fresh); err != nil {
			t.Errorf("merge failed: %v", err)
		}
	}
	if err := engine.Start(src, onEvent); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer engine.Close()

	src.Push("8851019239706")
	src.Push("8851019239706") // inside cooldown, suppressed

	lines := cart.Lines()
	if len(lines) != 1 || lines[0].Quantity != 1 {
		t.Fatalf("expected one line with quantity 1, got %+v", lines)
	}

	time.Sleep(90 * time.Millisecond)
	src.Push("8851019239706")

	lines = cart.Lines()
	if len(lines) != 1 || lines[0].Quantity != 2 {
		t.Fatalf("expected quantity 2 after cooldown, got %+v", lines)
	}

	if err := cart.CommitLine(context.Background(), lines[0].ID); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if gotBarcode != "8851019239706" || gotQty != 2 {
		t.Fatalf("expected DeductStock(8851019239706, 2), got (%s, %d)", gotBarcode, gotQty)
	}
	if got := cart.Lines(); len(got) != 0 {
		t.Fatalf("expected empty cart, got %+v", got)
	}
}
