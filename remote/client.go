package remote

// GET  /product/{barcode}  – product snapshot for a scanned barcode
// POST /sell-local         – deduct stock for a committed cart line
// POST /daily-payments     – record a confirmed daily payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"stockscan/model"
)

// ErrNotFound is returned when a barcode has no matching product upstream.
var ErrNotFound = errors.New("product not found")

// ErrAuth is returned when the bearer token is missing or rejected.
var ErrAuth = errors.New("please sign in")

// BackendError means the remote call completed but the backend reported
// failure. Message carries the server's error text verbatim.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string { return e.Message }

// TransportError wraps a network-level failure. Local state is unchanged,
// so the action is safely retryable.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "connection failed: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// Client is a stateless wrapper around the three upstream operations.
// It performs no retries, no batching, and keeps no results beyond the
// single call.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a Client for the upstream base URL. timeout bounds each
// request end to end; a stalled request surfaces as a TransportError.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchProduct looks up the product snapshot for a barcode.
func (c *Client) FetchProduct(ctx context.Context, barcode string) (model.Product, error) {
	resp, err := c.do(ctx, http.MethodGet, "/product/"+barcode, nil)
	if err != nil {
		return model.Product{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return model.Product{}, ErrNotFound
	}
	if err := checkStatus(resp); err != nil {
		return model.Product{}, err
	}

	var p model.Product
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return model.Product{}, fmt.Errorf("decode product: %w", err)
	}
	return p, nil
}

// DeductStock commits a sale of qty units of the given barcode.
func (c *Client) DeductStock(ctx context.Context, barcode string, qty int) error {
	body := map[string]interface{}{"barcode": barcode, "quantity": qty}
	resp, err := c.do(ctx, http.MethodPost, "/sell-local", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// CreatePayment records a confirmed daily payment on the backend.
// date is the payment day in YYYY-MM-DD.
func (c *Client) CreatePayment(ctx context.Context, name string, amount float64, date string) error {
	body := map[string]interface{}{"name": name, "amount": amount, "date": date}
	resp, err := c.do(ctx, http.MethodPost, "/daily-payments", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// do builds and sends one request. Transport failures come back wrapped as
// *TransportError; HTTP-level outcomes are left to the caller.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return resp, nil
}

// checkStatus maps a non-2xx response to the error taxonomy, preserving the
// backend's message when it sent one.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrAuth
	}

	msg := ""
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &BackendError{Status: resp.StatusCode, Message: msg}
}
