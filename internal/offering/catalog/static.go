package catalog

import (
	"context"
	"strings"

	"github.com/smallbiznis/blsuntech/internal/config"
	"github.com/smallbiznis/blsuntech/internal/offering/domain"
)

// Static serves offerings from the hot-reloaded offerings file.
type Static struct {
	holder *config.CatalogHolder
}

func NewStatic(holder *config.CatalogHolder) *Static {
	return &Static{holder: holder}
}

func (s *Static) Name() string { return config.CatalogSourceStatic }

func (s *Static) List(context.Context) ([]domain.Offering, error) {
	entries := s.holder.Get().Offerings
	out := make([]domain.Offering, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toOffering(entry))
	}
	return out, nil
}

func (s *Static) Find(_ context.Context, id string) (domain.Offering, error) {
	id = strings.TrimSpace(id)
	for _, entry := range s.holder.Get().Offerings {
		if entry.ID != id {
			continue
		}
		offering := toOffering(entry)
		if !offering.Active {
			return domain.Offering{}, domain.ErrInactive
		}
		return offering, nil
	}
	return domain.Offering{}, domain.ErrNotFound
}

func toOffering(entry config.StaticOffering) domain.Offering {
	return domain.Offering{
		ID:       entry.ID,
		Label:    entry.Label,
		Amount:   entry.Amount,
		Currency: entry.Currency,
		Active:   entry.IsActive(),
	}
}
