package service

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"storefront/model"
	"storefront/store"
)

type Service struct {
	store           store.Store
	payments        PaymentProvider
	defaultCurrency string
}

func NewService(s store.Store, p PaymentProvider, defaultCurrency string) *Service {
	return &Service{store: s, payments: p, defaultCurrency: defaultCurrency}
}

func (s *Service) CreateProduct(ctx context.Context, np model.NewProduct) (model.Product, error) {
	if err := np.Validate(); err != nil {
		return model.Product{}, err
	}
	p, err := s.store.CreateProduct(ctx, np)
	if err != nil {
		return model.Product{}, err
	}
	log.WithFields(log.Fields{"product_id": p.ID, "price": p.Price}).Info("product created")
	return p, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (model.Product, error) {
	if id == "" {
		return model.Product{}, model.ErrNotFound
	}
	return s.store.GetProduct(ctx, id)
}

// Checkout opens a payment session for an available product. It never
// reserves or mutates the product: availability is flipped only by the
// payment webhook, so abandoned sessions leave nothing behind.
func (s *Service) Checkout(ctx context.Context, req model.CheckoutRequest) (model.CheckoutSession, error) {
	switch {
	case req.ProductID == "":
		return model.CheckoutSession{}, errors.Wrap(model.ErrValidation, "productId is required")
	case req.SuccessURL == "":
		return model.CheckoutSession{}, errors.Wrap(model.ErrValidation, "successUrl is required")
	case req.CancelURL == "":
		return model.CheckoutSession{}, errors.Wrap(model.ErrValidation, "cancelUrl is required")
	}

	p, err := s.store.GetProduct(ctx, req.ProductID)
	if err != nil {
		return model.CheckoutSession{}, err
	}
	if !p.Available {
		return model.CheckoutSession{}, model.ErrConflict
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	sess, err := s.payments.CreateSession(ctx, model.SessionRequest{
		Product:    p,
		Currency:   currency,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		return model.CheckoutSession{}, err
	}
	log.WithFields(log.Fields{"product_id": p.ID, "session_id": sess.ID}).Info("checkout session opened")
	return sess, nil
}

// ProcessPaymentWebhook authenticates a raw provider delivery and marks the
// referenced product sold. Deliveries that are authentic but irrelevant
// (other event types, no product id, already sold) return (false, nil).
// ErrInvalidSignature means nothing was touched; any other error is
// transient and the provider should redeliver.
func (s *Service) ProcessPaymentWebhook(ctx context.Context, payload []byte, signature string) (bool, error) {
	ev, err := s.payments.ParseEvent(payload, signature)
	if err != nil {
		return false, err
	}
	logger := log.WithFields(log.Fields{"event_id": ev.ID, "event_type": ev.Type})

	if ev.Type != model.EventCheckoutCompleted {
		logger.Debug("ignoring payment event")
		return false, nil
	}
	if ev.ProductID == "" {
		logger.Warn("completed checkout without product id")
		return false, nil
	}

	changed, err := s.store.MarkSold(ctx, ev.ProductID)
	if err != nil {
		return false, errors.Wrapf(err, "process event %s", ev.ID)
	}
	logger.WithFields(log.Fields{"product_id": ev.ProductID, "changed": changed}).Info("payment confirmed")
	return changed, nil
}
