package model

// CheckoutRequest asks for a payment session for a single product.
type CheckoutRequest struct {
	ProductID  string
	SuccessURL string
	CancelURL  string
	Currency   string
}

// SessionRequest is what the payment provider needs to open a session.
type SessionRequest struct {
	Product    Product
	Currency   string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the provider-side session handed back to the client.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PaymentEvent is a verified provider event reduced to what the webhook needs.
// ProductID is empty when the event carries no correlation value.
type PaymentEvent struct {
	ID        string
	Type      string
	ProductID string
}

// EventCheckoutCompleted is the only event type that marks a product sold.
const EventCheckoutCompleted = "checkout.session.completed"

// MetadataProductID is the session metadata key holding the correlation value.
const MetadataProductID = "productId"
