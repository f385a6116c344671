package catalog

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/smallbiznis/blsuntech/internal/offering/domain"
	stripesdk "github.com/stripe/stripe-go/v80"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStripe struct {
	mock.Mock
}

func (m *mockStripe) ListActivePrices(ctx context.Context) ([]*stripesdk.Price, error) {
	args := m.Called(ctx)
	prices, _ := args.Get(0).([]*stripesdk.Price)
	return prices, args.Error(1)
}

func (m *mockStripe) GetPrice(ctx context.Context, id string) (*stripesdk.Price, error) {
	args := m.Called(ctx, id)
	price, _ := args.Get(0).(*stripesdk.Price)
	return price, args.Error(1)
}

func (m *mockStripe) CreateCheckoutSession(ctx context.Context, params *stripesdk.CheckoutSessionParams) (*stripesdk.CheckoutSession, error) {
	args := m.Called(ctx, params)
	session, _ := args.Get(0).(*stripesdk.CheckoutSession)
	return session, args.Error(1)
}

func (m *mockStripe) GetCheckoutSession(ctx context.Context, id string) (*stripesdk.CheckoutSession, error) {
	args := m.Called(ctx, id)
	session, _ := args.Get(0).(*stripesdk.CheckoutSession)
	return session, args.Error(1)
}

func price(id string, amount int64, priceActive, productActive bool, kind stripesdk.PriceType) *stripesdk.Price {
	return &stripesdk.Price{
		ID:         id,
		Active:     priceActive,
		Type:       kind,
		UnitAmount: amount,
		Currency:   stripesdk.Currency("usd"),
		Product:    &stripesdk.Product{ID: "prod_" + id, Name: "Product " + id, Active: productActive},
	}
}

func TestStripeListRequiresActivePriceAndProduct(t *testing.T) {
	api := &mockStripe{}
	api.On("ListActivePrices", mock.Anything).Return([]*stripesdk.Price{
		price("price_ok", 150000, true, true, stripesdk.PriceTypeOneTime),
		price("price_dead_product", 9900, true, false, stripesdk.PriceTypeOneTime),
		price("price_recurring", 5000, true, true, stripesdk.PriceTypeRecurring),
		price("price_free", 0, true, true, stripesdk.PriceTypeOneTime),
	}, nil)

	items, err := NewStripe(api).List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "price_ok", items[0].ID)
	assert.Equal(t, 1500.0, items[0].Amount)
	assert.Equal(t, "Product price_ok", items[0].Label)
	assert.Equal(t, "prod_price_ok", items[0].ProductID)
}

func TestStripeListWrapsUpstreamErrors(t *testing.T) {
	api := &mockStripe{}
	api.On("ListActivePrices", mock.Anything).Return(nil, errors.New("dial tcp: timeout"))

	_, err := NewStripe(api).List(context.Background())
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
}

func TestStripeFind(t *testing.T) {
	api := &mockStripe{}
	api.On("GetPrice", mock.Anything, "price_ok").Return(price("price_ok", 2500, true, true, stripesdk.PriceTypeOneTime), nil)
	api.On("GetPrice", mock.Anything, "price_off").Return(price("price_off", 2500, false, true, stripesdk.PriceTypeOneTime), nil)
	api.On("GetPrice", mock.Anything, "price_gone").Return(nil, &stripesdk.Error{
		Code:           stripesdk.ErrorCodeResourceMissing,
		HTTPStatusCode: http.StatusNotFound,
	})

	src := NewStripe(api)

	got, err := src.Find(context.Background(), "price_ok")
	require.NoError(t, err)
	assert.Equal(t, 25.0, got.Amount)

	_, err = src.Find(context.Background(), "price_off")
	assert.ErrorIs(t, err, domain.ErrInactive)

	_, err = src.Find(context.Background(), "price_gone")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFromPriceDefaultsLabel(t *testing.T) {
	p := price("price_x", 1000, true, true, stripesdk.PriceTypeOneTime)
	p.Product.Name = "  "
	got, ok := FromPrice(p)
	require.True(t, ok)
	assert.Equal(t, "Service", got.Label)
}
