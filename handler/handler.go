package handler

// POST /scanner/start – open a scan session
// POST /scanner/close – close the session, release the decode source
// POST /scan          – deliver one raw decoded string (debounced)
// GET  /cart/list     – list staged cart lines
// POST /cart/{id}/quantity – edit a line's quantity
// POST /cart/{id}/commit   – deduct stock upstream, drop the line on success
// POST /cart/{id}/remove   – remove a line locally
// GET  /payments/list      – list staged payment items
// POST /payments/add       – stage a payment item
// POST /payments/{id}/confirm – record upstream, drop the item on success
// POST /payments/{id}/remove  – remove an item locally

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"stockscan/remote"
	"stockscan/scanner"
	"stockscan/store"
)

// Handler is the HTTP command surface over the scan/cart/payment core.
type Handler struct {
	cart     *store.CartStore
	payments *store.PaymentQueueStore
	engine   *scanner.Engine
	logger   *log.Logger

	mu     sync.Mutex
	source *scanner.PushSource
}

// NewHandler returns a Handler instance.
func NewHandler(cart *store.CartStore, payments *store.PaymentQueueStore, engine *scanner.Engine, logger *log.Logger) *Handler {
	return &Handler{cart: cart, payments: payments, engine: engine, logger: logger}
}

// RegisterRoutes registers all routes on the provided router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Scanner
	r.HandleFunc("/scanner/start", h.StartScanner).Methods("POST")
	r.HandleFunc("/scanner/close", h.CloseScanner).Methods("POST")
	r.HandleFunc("/scan", h.Scan).Methods("POST")

	// Cart
	r.HandleFunc("/cart/list", h.ListCart).Methods("GET")
	r.HandleFunc("/cart/{id}/quantity", h.EditQuantity).Methods("POST")
	r.HandleFunc("/cart/{id}/commit", h.CommitLine).Methods("POST")
	r.HandleFunc("/cart/{id}/remove", h.RemoveLine).Methods("POST")

	// Payments
	r.HandleFunc("/payments/list", h.ListPayments).Methods("GET")
	r.HandleFunc("/payments/add", h.AddPayment).Methods("POST")
	r.HandleFunc("/payments/{id}/confirm", h.ConfirmPayment).Methods("POST")
	r.HandleFunc("/payments/{id}/remove", h.DeletePayment).Methods("POST")
}

// --- request / response shapes ---

type scanReq struct {
	Code string `json:"code"`
}

type editQuantityReq struct {
	Quantity string `json:"quantity"`
}

type addPaymentReq struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// errStatus maps the error taxonomy to HTTP statuses. Backend messages are
// passed through verbatim by the caller.
func errStatus(err error) int {
	var ve *store.ValidationError
	var be *remote.BackendError
	var te *remote.TransportError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, remote.ErrNotFound),
		errors.Is(err, store.ErrLineNotFound),
		errors.Is(err, store.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, remote.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, scanner.ErrActive):
		return http.StatusConflict
	case errors.As(err, &be):
		return http.StatusConflict
	case errors.As(err, &te):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// --- Scanner ---

// StartScanner handles POST /scanner/start
func (h *Handler) StartScanner(w http.ResponseWriter, r *http.Request) {
	src := scanner.NewPushSource()
	if err := h.engine.Start(src, h.onScan); err != nil {
		writeErr(w, errStatus(err), err.Error())
		return
	}
	h.mu.Lock()
	h.source = src
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "scanning"})
}

// CloseScanner handles POST /scanner/close
func (h *Handler) CloseScanner(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.source = nil
	h.mu.Unlock()
	if err := h.engine.Close(); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// Scan handles POST /scan
// body: { "code": "8851019239706" }
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Code == "" {
		writeErr(w, http.StatusBadRequest, "code is required")
		return
	}

	h.mu.Lock()
	src := h.source
	h.mu.Unlock()
	if src == nil {
		writeErr(w, http.StatusConflict, "scanner not active")
		return
	}
	src.Push(req.Code)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "received"})
}

// onScan is the accepted-scan event consumer: it resolves the lookup off
// the request path and discards the result if the session was closed while
// the lookup was in flight.
func (h *Handler) onScan(code string, generation uint64) {
	go func() {
		fresh := func() bool { return h.engine.Generation() == generation }
		_, err := h.cart.LookupAndMerge(context.Background(), code, fresh)
		if errors.Is(err, store.ErrStaleScan) {
			h.logger.Printf("scan %q discarded: session closed", code)
			return
		}
		if err != nil {
			h.logger.Printf("scan %q: %v", code, err)
		}
	}()
}

// --- Cart ---

// ListCart handles GET /cart/list
func (h *Handler) ListCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"lines": h.cart.Lines()})
}

// EditQuantity handles POST /cart/{id}/quantity
// body: { "quantity": "3" } — the empty string parks the line while typing
func (h *Handler) EditQuantity(w http.ResponseWriter, r *http.Request) {
	var req editQuantityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.cart.EditQuantity(r.Context(), mux.Vars(r)["id"], req.Quantity); err != nil {
		writeErr(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// CommitLine handles POST /cart/{id}/commit
func (h *Handler) CommitLine(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.CommitLine(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeErr(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "committed"})
}

// RemoveLine handles POST /cart/{id}/remove
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.RemoveLine(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeErr(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// --- Payments ---

// ListPayments handles GET /payments/list
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": h.payments.Items()})
}

// AddPayment handles POST /payments/add
// body: { "name": "...", "amount": 10 }
func (h *Handler) AddPayment(w http.ResponseWriter, r *http.Request) {
	var req addPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	item, err := h.payments.Add(r.Context(), req.Name, req.Amount)
	if err != nil {
		writeErr(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// ConfirmPayment handles POST /payments/{id}/confirm
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	if err := h.payments.Confirm(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeErr(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

// DeletePayment handles POST /payments/{id}/remove
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	if err := h.payments.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeErr(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
