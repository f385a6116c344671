package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/blsuntech/internal/config"
	"github.com/smallbiznis/blsuntech/internal/offering/domain"
	stripeprovider "github.com/smallbiznis/blsuntech/internal/providers/stripe"
	stripesdk "github.com/stripe/stripe-go/v80"
)

const defaultLabel = "Service"

// Stripe reads one-time prices whose product is active.
type Stripe struct {
	api stripeprovider.API
}

func NewStripe(api stripeprovider.API) *Stripe {
	return &Stripe{api: api}
}

func (s *Stripe) Name() string { return config.CatalogSourceStripe }

func (s *Stripe) List(ctx context.Context) ([]domain.Offering, error) {
	prices, err := s.api.ListActivePrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}
	out := make([]domain.Offering, 0, len(prices))
	for _, price := range prices {
		offering, ok := FromPrice(price)
		if !ok || !offering.Active {
			continue
		}
		out = append(out, offering)
	}
	return out, nil
}

func (s *Stripe) Find(ctx context.Context, id string) (domain.Offering, error) {
	price, err := s.api.GetPrice(ctx, strings.TrimSpace(id))
	if err != nil {
		if stripeprovider.IsResourceMissing(err) || stripeprovider.IsInvalidRequest(err) {
			return domain.Offering{}, domain.ErrNotFound
		}
		return domain.Offering{}, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}
	offering, ok := FromPrice(price)
	if !ok {
		return domain.Offering{}, domain.ErrNotFound
	}
	if !offering.Active {
		return domain.Offering{}, domain.ErrInactive
	}
	return offering, nil
}

// FromPrice maps a Stripe price to an offering. Recurring and zero-amount
// prices are not offerings. An offering is active only when both the price
// and its expanded product are active.
func FromPrice(price *stripesdk.Price) (domain.Offering, bool) {
	if price == nil || price.Type != stripesdk.PriceTypeOneTime || price.UnitAmount <= 0 {
		return domain.Offering{}, false
	}

	label := defaultLabel
	productID := ""
	productActive := false
	if price.Product != nil {
		productID = price.Product.ID
		productActive = price.Product.Active && !price.Product.Deleted
		if name := strings.TrimSpace(price.Product.Name); name != "" {
			label = name
		}
	}

	return domain.Offering{
		ID:        price.ID,
		Label:     label,
		Amount:    float64(price.UnitAmount) / 100,
		Currency:  strings.ToLower(string(price.Currency)),
		Active:    price.Active && productActive,
		ProductID: productID,
	}, true
}
