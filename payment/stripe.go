// Package payment adapts Stripe Checkout to the storefront: it opens hosted
// checkout sessions and turns signed webhook deliveries into PaymentEvents.
package payment

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"storefront/model"
)

// SignatureHeader is the request header Stripe signs webhook bodies with.
const SignatureHeader = "Stripe-Signature"

type sessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type Stripe struct {
	sessions      sessionCreator
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret string) *Stripe {
	api := client.New(secretKey, nil)
	return &Stripe{sessions: api.CheckoutSessions, webhookSecret: webhookSecret}
}

// CreateSession opens a one-item card payment session. The product id is
// stored in the session metadata so the completion webhook can find it.
func (s *Stripe) CreateSession(ctx context.Context, req model.SessionRequest) (model.CheckoutSession, error) {
	params := sessionParams(req)
	params.Context = ctx
	cs, err := s.sessions.New(params)
	if err != nil {
		return model.CheckoutSession{}, errors.Wrapf(err, "create checkout session for %s", req.Product.ID)
	}
	return model.CheckoutSession{ID: cs.ID, URL: cs.URL}, nil
}

func sessionParams(req model.SessionRequest) *stripe.CheckoutSessionParams {
	p := req.Product
	productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name:        stripe.String(p.Name),
		Description: stripe.String(p.Description),
	}
	if p.ImageURL != "" {
		productData.Images = stripe.StringSlice([]string{p.ImageURL})
	}
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.Currency),
				ProductData: productData,
				UnitAmount:  stripe.Int64(p.Price),
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(successURL(req.SuccessURL, p.ID)),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.AddMetadata(model.MetadataProductID, p.ID)
	return params
}

// successURL appends the session id template and the product id. The
// template must reach Stripe unescaped for substitution to happen.
func successURL(base, productID string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "session_id={CHECKOUT_SESSION_ID}&product_id=" + url.QueryEscape(productID)
}

// ParseEvent verifies payload against the signature header and decodes it.
// Any verification or decoding failure is reported as ErrInvalidSignature.
// ProductID is filled only for completed checkout sessions that carry one.
func (s *Stripe) ParseEvent(payload []byte, signature string) (model.PaymentEvent, error) {
	if s.webhookSecret == "" {
		return model.PaymentEvent{}, errors.Wrap(model.ErrInvalidSignature, "webhook secret not configured")
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return model.PaymentEvent{}, errors.Wrap(model.ErrInvalidSignature, err.Error())
	}

	out := model.PaymentEvent{ID: ev.ID, Type: string(ev.Type)}
	if out.Type != model.EventCheckoutCompleted || ev.Data == nil {
		return out, nil
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &cs); err == nil {
		out.ProductID = cs.Metadata[model.MetadataProductID]
	}
	return out, nil
}
