package service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/model"
	"storefront/store"
)

// ---- fakeStore implementing store.Store for tests ----
type fakeStore struct {
	CreateProductFn func(p model.NewProduct) (model.Product, error)
	GetProductFn    func(id string) (model.Product, error)
	ListProductsFn  func() ([]model.Product, error)
	MarkSoldFn      func(id string) (bool, error)
}

func (f *fakeStore) CreateProduct(_ context.Context, p model.NewProduct) (model.Product, error) {
	return f.CreateProductFn(p)
}
func (f *fakeStore) GetProduct(_ context.Context, id string) (model.Product, error) {
	return f.GetProductFn(id)
}
func (f *fakeStore) ListProducts(context.Context) ([]model.Product, error) { return f.ListProductsFn() }
func (f *fakeStore) MarkSold(_ context.Context, id string) (bool, error) { return f.MarkSoldFn(id) }
func (f *fakeStore) Close() error { return nil }

// ---- fakePayments: signature "ok" is authentic, payload is a JSON PaymentEvent ----
type fakePayments struct {
	opened  int32
	lastReq model.SessionRequest
	err     error
}

func (f *fakePayments) CreateSession(_ context.Context, req model.SessionRequest) (model.CheckoutSession, error) {
	atomic.AddInt32(&f.opened, 1)
	f.lastReq = req
	if f.err != nil {
		return model.CheckoutSession{}, f.err
	}
	return model.CheckoutSession{ID: "cs_1", URL: "https://pay.example/cs_1"}, nil
}

func (f *fakePayments) ParseEvent(payload []byte, signature string) (model.PaymentEvent, error) {
	if signature != "ok" {
		return model.PaymentEvent{}, model.ErrInvalidSignature
	}
	var ev model.PaymentEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return model.PaymentEvent{}, model.ErrInvalidSignature
	}
	return ev, nil
}

func completed(productID string) []byte {
	b, _ := json.Marshal(model.PaymentEvent{ID: "evt_1", Type: model.EventCheckoutCompleted, ProductID: productID})
	return b
}

func silk() model.NewProduct {
	return model.NewProduct{Name: "Silk A", Price: 100000, Description: "d", ImageURL: "http://x/i.jpg"}
}

// ---- Tests ----

func TestCreateProductValidationAndForwarding(t *testing.T) {
	called := false
	svc := NewService(&fakeStore{
		CreateProductFn: func(p model.NewProduct) (model.Product, error) {
			called = true
			return model.Product{ID: "p1", Name: p.Name, Price: p.Price, Available: true}, nil
		},
	}, &fakePayments{}, "inr")

	_, err := svc.CreateProduct(context.Background(), model.NewProduct{Price: 1, Description: "d", ImageURL: "u"})
	assert.True(t, errors.Is(err, model.ErrValidation))
	assert.False(t, called)

	p, err := svc.CreateProduct(context.Background(), silk())
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.True(t, called)
}

func TestListProductsStoreError(t *testing.T) {
	svc := NewService(&fakeStore{
		ListProductsFn: func() ([]model.Product, error) { return nil, errors.New("db down") },
	}, &fakePayments{}, "inr")
	_, err := svc.ListProducts(context.Background())
	assert.Error(t, err)
}

func TestCheckoutValidation(t *testing.T) {
	pay := &fakePayments{}
	svc := NewService(&fakeStore{}, pay, "inr")
	cases := map[string]model.CheckoutRequest{
		"missing product": {SuccessURL: "s", CancelURL: "c"},
		"missing success": {ProductID: "p1", CancelURL: "c"},
		"missing cancel":  {ProductID: "p1", SuccessURL: "s"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Checkout(context.Background(), req)
			assert.True(t, errors.Is(err, model.ErrValidation), "got %v", err)
		})
	}
	assert.Zero(t, pay.opened)
}

func TestCheckoutNotFound(t *testing.T) {
	pay := &fakePayments{}
	svc := NewService(&fakeStore{
		GetProductFn: func(string) (model.Product, error) { return model.Product{}, model.ErrNotFound },
	}, pay, "inr")

	_, err := svc.Checkout(context.Background(), model.CheckoutRequest{ProductID: "x", SuccessURL: "s", CancelURL: "c"})
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.Zero(t, pay.opened)
}

func TestCheckoutSoldProductConflicts(t *testing.T) {
	pay := &fakePayments{}
	svc := NewService(&fakeStore{
		GetProductFn: func(id string) (model.Product, error) { return model.Product{ID: id, Available: false}, nil },
	}, pay, "inr")

	_, err := svc.Checkout(context.Background(), model.CheckoutRequest{ProductID: "p1", SuccessURL: "s", CancelURL: "c"})
	assert.True(t, errors.Is(err, model.ErrConflict))
	assert.Zero(t, pay.opened)
}

func TestCheckoutOpensSessionWithoutMutating(t *testing.T) {
	pay := &fakePayments{}
	svc := NewService(&fakeStore{
		GetProductFn: func(id string) (model.Product, error) {
			return model.Product{ID: id, Name: "Silk A", Price: 100000, Available: true}, nil
		},
		MarkSoldFn: func(string) (bool, error) {
			t.Fatalf("checkout must not mark the product sold")
			return false, nil
		},
	}, pay, "inr")

	sess, err := svc.Checkout(context.Background(), model.CheckoutRequest{ProductID: "p1", SuccessURL: "https://s", CancelURL: "https://c", Currency: " USD "})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", sess.ID)
	assert.Equal(t, int32(1), pay.opened)
	assert.Equal(t, "usd", pay.lastReq.Currency)
	assert.Equal(t, "p1", pay.lastReq.Product.ID)
	assert.Equal(t, "https://s", pay.lastReq.SuccessURL)
}

func TestCheckoutDefaultCurrency(t *testing.T) {
	pay := &fakePayments{}
	svc := NewService(&fakeStore{
		GetProductFn: func(id string) (model.Product, error) { return model.Product{ID: id, Available: true}, nil },
	}, pay, "inr")

	_, err := svc.Checkout(context.Background(), model.CheckoutRequest{ProductID: "p1", SuccessURL: "s", CancelURL: "c"})
	require.NoError(t, err)
	assert.Equal(t, "inr", pay.lastReq.Currency)
}

func TestWebhookInvalidSignatureNeverMutates(t *testing.T) {
	svc := NewService(&fakeStore{
		MarkSoldFn: func(string) (bool, error) {
			t.Fatalf("MarkSold called for unauthenticated event")
			return false, nil
		},
	}, &fakePayments{}, "inr")

	_, err := svc.ProcessPaymentWebhook(context.Background(), completed("p1"), "forged")
	assert.True(t, errors.Is(err, model.ErrInvalidSignature))
}

func TestWebhookIgnoresIrrelevantEvents(t *testing.T) {
	svc := NewService(&fakeStore{
		MarkSoldFn: func(string) (bool, error) {
			t.Fatalf("MarkSold called for irrelevant event")
			return false, nil
		},
	}, &fakePayments{}, "inr")

	other, _ := json.Marshal(model.PaymentEvent{ID: "evt_2", Type: "invoice.paid", ProductID: "p1"})
	changed, err := svc.ProcessPaymentWebhook(context.Background(), other, "ok")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = svc.ProcessPaymentWebhook(context.Background(), completed(""), "ok")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestWebhookStoreErrorIsTransient(t *testing.T) {
	svc := NewService(&fakeStore{
		MarkSoldFn: func(string) (bool, error) { return false, errors.New("tx aborted") },
	}, &fakePayments{}, "inr")

	_, err := svc.ProcessPaymentWebhook(context.Background(), completed("p1"), "ok")
	require.Error(t, err)
	assert.False(t, errors.Is(err, model.ErrInvalidSignature))
}

func TestConcurrentDuplicateDeliveriesWriteOnce(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st, &fakePayments{}, "inr")
	ctx := context.Background()
	p, err := svc.CreateProduct(ctx, silk())
	require.NoError(t, err)

	const n = 50
	var writes int32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			changed, err := svc.ProcessPaymentWebhook(ctx, completed(p.ID), "ok")
			if err != nil {
				t.Errorf("delivery failed: %v", err)
				return
			}
			if changed {
				atomic.AddInt32(&writes, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), writes)
	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Available)

	_, err = svc.Checkout(ctx, model.CheckoutRequest{ProductID: p.ID, SuccessURL: "s", CancelURL: "c"})
	assert.True(t, errors.Is(err, model.ErrConflict))
}
