package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/blsuntech/internal/clock"
	"github.com/smallbiznis/blsuntech/internal/config"
	"github.com/smallbiznis/blsuntech/internal/offering/catalog"
	"github.com/smallbiznis/blsuntech/internal/offering/domain"
	stripeprovider "github.com/smallbiznis/blsuntech/internal/providers/stripe"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Clock   clock.Clock
	Catalog *config.CatalogHolder
	Stripe  stripeprovider.API
}

type Service struct {
	log      *zap.Logger
	clock    clock.Clock
	static   domain.Source
	live     domain.Source
	primary  domain.Source
	fallback domain.Source
	cacheTTL time.Duration

	mu       sync.RWMutex
	cached   []domain.Offering
	cachedAt time.Time
}

func New(p Params) domain.Service {
	static := catalog.NewStatic(p.Catalog)
	live := catalog.NewStripe(p.Stripe)
	return NewWithSources(p.Log, p.Clock, p.Cfg.Catalog, static, live)
}

// NewWithSources wires the catalog from explicit sources.
func NewWithSources(log *zap.Logger, clk clock.Clock, cfg config.CatalogConfig, static, live domain.Source) *Service {
	svc := &Service{
		log:      log.Named("offering.service"),
		clock:    clk,
		static:   static,
		live:     live,
		primary:  static,
		cacheTTL: cfg.CacheTTL,
	}
	if cfg.Source == config.CatalogSourceStripe {
		svc.primary = live
		if cfg.Fallback == config.CatalogSourceStatic {
			svc.fallback = static
		}
	}
	return svc
}

func (s *Service) ListOfferings(ctx context.Context) ([]domain.Offering, error) {
	if items, ok := s.fromCache(); ok {
		return items, nil
	}

	items, err := s.primary.List(ctx)
	if err != nil {
		if s.fallback == nil {
			s.log.Error("catalog unavailable", zap.String("source", s.primary.Name()), zap.Error(err))
			return nil, err
		}
		s.log.Warn("catalog unavailable, serving fallback",
			zap.String("source", s.primary.Name()),
			zap.String("fallback", s.fallback.Name()),
			zap.Error(err),
		)
		items, err = s.fallback.List(ctx)
		if err != nil {
			return nil, err
		}
		return domain.Selectable(items), nil
	}

	selectable := domain.Selectable(items)
	s.store(selectable)
	return selectable, nil
}

func (s *Service) FindOffering(ctx context.Context, id string) (domain.Offering, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Offering{}, domain.ErrInvalidID
	}

	source := s.static
	if domain.IsProviderPriceID(id) {
		source = s.live
	}
	offering, err := source.Find(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrCatalogUnavailable) {
			s.log.Error("offering lookup failed", zap.String("offering_id", id), zap.Error(err))
		}
		return domain.Offering{}, err
	}
	if offering.Amount <= 0 {
		return domain.Offering{}, domain.ErrInactive
	}
	return offering, nil
}

func (s *Service) fromCache() ([]domain.Offering, bool) {
	if s.cacheTTL <= 0 {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cached == nil || s.clock.Now().Sub(s.cachedAt) >= s.cacheTTL {
		return nil, false
	}
	out := make([]domain.Offering, len(s.cached))
	copy(out, s.cached)
	return out, true
}

func (s *Service) store(items []domain.Offering) {
	if s.cacheTTL <= 0 {
		return
	}
	s.mu.Lock()
	s.cached = append([]domain.Offering(nil), items...)
	s.cachedAt = s.clock.Now()
	s.mu.Unlock()
}
