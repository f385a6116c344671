package domain

import "context"

// Source is one backing store for the catalog.
type Source interface {
	Name() string
	List(ctx context.Context) ([]Offering, error)
	Find(ctx context.Context, id string) (Offering, error)
}
