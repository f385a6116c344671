package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/blsuntech/internal/clock"
	"github.com/smallbiznis/blsuntech/internal/config"
	"github.com/smallbiznis/blsuntech/internal/offering/catalog"
	"github.com/smallbiznis/blsuntech/internal/offering/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) List(ctx context.Context) ([]domain.Offering, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]domain.Offering)
	return items, args.Error(1)
}

func (m *mockSource) Find(ctx context.Context, id string) (domain.Offering, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Offering), args.Error(1)
}

func staticSource(t *testing.T) domain.Source {
	t.Helper()
	holder, err := config.NewStaticCatalogHolder(config.DefaultCatalog())
	require.NoError(t, err)
	return catalog.NewStatic(holder)
}

func TestListOfferingsStaticSortedAscending(t *testing.T) {
	svc := NewWithSources(zap.NewNop(), clock.SystemClock{}, config.CatalogConfig{Source: config.CatalogSourceStatic}, staticSource(t), &mockSource{})

	items, err := svc.ListOfferings(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "security-audit", items[0].ID)
	assert.Equal(t, "api-build", items[1].ID)
	assert.Equal(t, "portfolio", items[2].ID)
	for i, item := range items {
		assert.Greater(t, item.Amount, 0.0)
		if i > 0 {
			assert.LessOrEqual(t, items[i-1].Amount, item.Amount)
		}
	}
}

func TestListOfferingsDropsInactiveAndNonPositive(t *testing.T) {
	live := &mockSource{}
	live.On("List", mock.Anything).Return([]domain.Offering{
		{ID: "price_b", Label: "B", Amount: 50, Currency: "usd", Active: true},
		{ID: "price_a", Label: "A", Amount: 50, Currency: "usd", Active: true},
		{ID: "price_off", Label: "Off", Amount: 10, Currency: "usd", Active: false},
		{ID: "price_zero", Label: "Zero", Amount: 0, Currency: "usd", Active: true},
	}, nil)

	svc := NewWithSources(zap.NewNop(), clock.SystemClock{}, config.CatalogConfig{Source: config.CatalogSourceStripe}, staticSource(t), live)

	items, err := svc.ListOfferings(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "price_a", items[0].ID)
	assert.Equal(t, "price_b", items[1].ID)
}

func TestListOfferingsUpstreamErrorWithoutFallback(t *testing.T) {
	live := &mockSource{}
	live.On("List", mock.Anything).Return(nil, domain.ErrCatalogUnavailable)

	svc := NewWithSources(zap.NewNop(), clock.SystemClock{}, config.CatalogConfig{Source: config.CatalogSourceStripe}, staticSource(t), live)

	_, err := svc.ListOfferings(context.Background())
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
}

func TestListOfferingsUsesConfiguredFallback(t *testing.T) {
	live := &mockSource{}
	live.On("List", mock.Anything).Return(nil, errors.New("stripe down"))

	svc := NewWithSources(zap.NewNop(), clock.SystemClock{}, config.CatalogConfig{
		Source:   config.CatalogSourceStripe,
		Fallback: config.CatalogSourceStatic,
	}, staticSource(t), live)

	items, err := svc.ListOfferings(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestListOfferingsCacheHonoursTTL(t *testing.T) {
	live := &mockSource{}
	live.On("List", mock.Anything).Return([]domain.Offering{
		{ID: "price_a", Label: "A", Amount: 20, Currency: "usd", Active: true},
	}, nil).Twice()

	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	svc := NewWithSources(zap.NewNop(), fake, config.CatalogConfig{
		Source:   config.CatalogSourceStripe,
		CacheTTL: time.Minute,
	}, staticSource(t), live)

	_, err := svc.ListOfferings(context.Background())
	require.NoError(t, err)
	_, err = svc.ListOfferings(context.Background())
	require.NoError(t, err)
	live.AssertNumberOfCalls(t, "List", 1)

	fake.Advance(2 * time.Minute)
	_, err = svc.ListOfferings(context.Background())
	require.NoError(t, err)
	live.AssertNumberOfCalls(t, "List", 2)
}

func TestFindOfferingRoutesByIDShape(t *testing.T) {
	live := &mockSource{}
	live.On("Find", mock.Anything, "price_123").Return(domain.Offering{
		ID: "price_123", Label: "Retainer", Amount: 300, Currency: "usd", Active: true,
	}, nil)

	svc := NewWithSources(zap.NewNop(), clock.SystemClock{}, config.CatalogConfig{}, staticSource(t), live)

	got, err := svc.FindOffering(context.Background(), "price_123")
	require.NoError(t, err)
	assert.Equal(t, "Retainer", got.Label)

	got, err = svc.FindOffering(context.Background(), " portfolio ")
	require.NoError(t, err)
	assert.Equal(t, int64(1000000), got.UnitAmount())

	_, err = svc.FindOffering(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.FindOffering(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}
