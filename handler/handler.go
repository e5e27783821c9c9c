package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"storefront/auth"
	"storefront/model"
	"storefront/payment"
	"storefront/service"
)

// Stripe payloads are well under this; anything larger is not a real event.
const maxWebhookBody = 64 << 10

// Handler is the HTTP layer that talks to service.Service
type Handler struct {
	svc            service.ServiceInterface
	gate           *auth.Gate
	webhookTimeout time.Duration
}

// NewHandler returns a Handler instance
func NewHandler(s service.ServiceInterface, gate *auth.Gate, webhookTimeout time.Duration) *Handler {
	return &Handler{svc: s, gate: gate, webhookTimeout: webhookTimeout}
}

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Products
	r.HandleFunc("/products", h.ListProducts).Methods(http.MethodGet)
	r.Handle("/products", h.RequireAdmin(http.HandlerFunc(h.CreateProduct))).Methods(http.MethodPost)
	r.HandleFunc("/products/{id}", h.GetProduct).Methods(http.MethodGet)

	// Checkout
	r.HandleFunc("/checkout", h.Checkout).Methods(http.MethodPost)

	// Provider callbacks
	r.HandleFunc("/webhooks/stripe", h.StripeWebhook).Methods(http.MethodPost)
	r.HandleFunc("/sms-webhook", h.SMSWebhook).Methods(http.MethodPost)

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
}

// --- request / response shapes ---
type createProductReq struct {
	Name        string      `json:"name"`
	Price       json.Number `json:"price"`
	Description string      `json:"description"`
	ImageURL    string      `json:"image_url"`
}

type checkoutReq struct {
	ProductID  string `json:"productId"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
	Currency   string `json:"currency,omitempty"`
}

type productsResp struct {
	Products []model.Product `json:"products"`
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

// writeServiceErr maps the error taxonomy to a status. Unclassified errors
// are logged and reported without detail.
func writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrUnauthorized):
		writeErr(w, http.StatusUnauthorized, model.ErrUnauthorized.Error())
	case errors.Is(err, model.ErrNotFound):
		writeErr(w, http.StatusNotFound, model.ErrNotFound.Error())
	case errors.Is(err, model.ErrConflict):
		writeErr(w, http.StatusConflict, model.ErrConflict.Error())
	case errors.Is(err, model.ErrInvalidSignature):
		writeErr(w, http.StatusBadRequest, model.ErrInvalidSignature.Error())
	default:
		log.WithError(err).WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": RequestIDFromContext(r.Context()),
		}).Error("request failed")
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}

// --- Handler ---

// RequireAdmin rejects the request with 401 unless the admin gate accepts it.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.gate.Authorize(r.Context(), auth.CredentialsFromRequest(r)); err != nil {
			writeServiceErr(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListProducts handles GET /products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ListProducts(r.Context())
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productsResp{Products: ps})
}

// GetProduct handles GET /products/{id}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProduct(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreateProduct handles POST /products
// body: { "name": "...", "price": 100000, "description": "...", "image_url": "..." }
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	var price int64
	if req.Price != "" {
		n, err := req.Price.Int64()
		if err != nil {
			writeErr(w, http.StatusBadRequest, "price must be a positive integer")
			return
		}
		price = n
	}

	p, err := h.svc.CreateProduct(r.Context(), model.NewProduct{
		Name:        req.Name,
		Price:       price,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Checkout handles POST /checkout
// body: { "productId": "...", "successUrl": "...", "cancelUrl": "...", "currency": "inr" }
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	sess, err := h.svc.Checkout(r.Context(), model.CheckoutRequest{
		ProductID:  req.ProductID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		Currency:   req.Currency,
	})
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// StripeWebhook handles POST /webhooks/stripe. The body is read once and
// handed over unparsed: the signature covers the exact bytes sent.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.webhookTimeout)
	defer cancel()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if _, err := h.svc.ProcessPaymentWebhook(ctx, payload, r.Header.Get(payment.SignatureHeader)); err != nil {
		if errors.Is(err, model.ErrInvalidSignature) {
			log.WithError(err).WithField("request_id", RequestIDFromContext(r.Context())).
				Warn("webhook signature verification failed")
		}
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// SMSWebhook handles POST /sms-webhook. It only records the delivery.
func (h *Handler) SMSWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Failed", http.StatusBadRequest)
		return
	}
	log.WithFields(log.Fields{
		"content_type": r.Header.Get("Content-Type"),
		"payload":      string(body),
		"request_id":   RequestIDFromContext(r.Context()),
	}).Info("sms webhook payload")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
