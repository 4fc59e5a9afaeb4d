package store

import (
	"context"
	"errors"

	"stockscan/model"
)

// Committer is the slice of the upstream client the staging stores drive.
// Implemented by remote.Client; tests substitute function-field fakes.
type Committer interface {
	FetchProduct(ctx context.Context, barcode string) (model.Product, error)
	DeductStock(ctx context.Context, barcode string, qty int) error
	CreatePayment(ctx context.Context, name string, amount float64, date string) error
}

// ErrLineNotFound is returned when a cart line id has no match.
var ErrLineNotFound = errors.New("cart line not found")

// ErrItemNotFound is returned when a payment item id has no match.
var ErrItemNotFound = errors.New("payment item not found")

// ErrStaleScan is returned when a lookup resolves after the scan session
// that produced it was closed. The result is discarded, not applied.
var ErrStaleScan = errors.New("scan session closed before lookup resolved")

// ValidationError is a local precondition failure. It blocks the action
// before any network call is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }
