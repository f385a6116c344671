package domain

import (
	"context"
	"errors"
)

type Service interface {
	// ListOfferings returns active offerings sorted by ascending amount.
	ListOfferings(ctx context.Context) ([]Offering, error)
	// FindOffering resolves a static id or a provider price id to an active offering.
	FindOffering(ctx context.Context, id string) (Offering, error)
}

var (
	ErrInvalidID          = errors.New("invalid_offering_id")
	ErrNotFound           = errors.New("offering_not_found")
	ErrInactive           = errors.New("offering_inactive")
	ErrCatalogUnavailable = errors.New("catalog_unavailable")
)
