package service

import (
	"context"

	"storefront/model"
)

type ServiceInterface interface {
	CreateProduct(ctx context.Context, p model.NewProduct) (model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id string) (model.Product, error)
	Checkout(ctx context.Context, req model.CheckoutRequest) (model.CheckoutSession, error)
	ProcessPaymentWebhook(ctx context.Context, payload []byte, signature string) (bool, error)
}

// PaymentProvider opens hosted payment sessions and authenticates the
// provider's webhook deliveries.
type PaymentProvider interface {
	CreateSession(ctx context.Context, req model.SessionRequest) (model.CheckoutSession, error)
	ParseEvent(payload []byte, signature string) (model.PaymentEvent, error)
}
