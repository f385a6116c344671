package domain

import (
	"math"
	"sort"
	"strings"
)

const ProviderPricePrefix = "price_"

// Offering is a purchasable service package. Amount is in the currency's major unit.
type Offering struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Active    bool    `json:"active"`
	ProductID string  `json:"productId,omitempty"`
}

// UnitAmount converts Amount to minor units.
func (o Offering) UnitAmount() int64 {
	return int64(math.Round(o.Amount * 100))
}

// IsProviderPrice reports whether the offering id is a processor-native price id.
func (o Offering) IsProviderPrice() bool {
	return IsProviderPriceID(o.ID)
}

func IsProviderPriceID(id string) bool {
	return strings.HasPrefix(strings.TrimSpace(id), ProviderPricePrefix)
}

// Selectable drops inactive and non-positive offerings and orders the rest
// cheapest first, breaking ties by id.
func Selectable(items []Offering) []Offering {
	out := make([]Offering, 0, len(items))
	for _, item := range items {
		if !item.Active || item.Amount <= 0 {
			continue
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount < out[j].Amount
		}
		return out[i].ID < out[j].ID
	})
	return out
}
