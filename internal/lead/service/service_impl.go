package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/smallbiznis/blsuntech/internal/clock"
	"github.com/smallbiznis/blsuntech/internal/config"
	"github.com/smallbiznis/blsuntech/internal/lead/domain"
	obsmetrics "github.com/smallbiznis/blsuntech/internal/observability/metrics"
	offeringdomain "github.com/smallbiznis/blsuntech/internal/offering/domain"
	"github.com/smallbiznis/blsuntech/internal/providers/email"
	"github.com/smallbiznis/blsuntech/pkg/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	minNameLength    = 2
	minMessageLength = 8
	lookupTimeout    = 3 * time.Second
	notifyTimeout    = 15 * time.Second
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type collectionSource interface {
	Collection(ctx context.Context, name string) (*mongo.Collection, error)
}

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	Mongo      *mongodb.Client
	Repo       domain.Repository
	Offerings  offeringdomain.Service `optional:"true"`
	Email      email.Provider         `optional:"true"`
	ObsMetrics *obsmetrics.Metrics    `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	clock      clock.Clock
	mongo      collectionSource
	collection string
	repo       domain.Repository
	offerings  offeringdomain.Service
	email      email.Provider
	notifyTo   []string
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return newService(p, p.Mongo)
}

func newService(p Params, mongo collectionSource) *Service {
	collection := strings.TrimSpace(p.Cfg.Mongo.Collection)
	if collection == "" {
		collection = domain.CollectionName
	}
	mailer := p.Email
	if mailer == nil {
		mailer = email.NoOpProvider{}
	}
	return &Service{
		log:        p.Log.Named("lead.service"),
		clock:      p.Clock,
		mongo:      mongo,
		collection: collection,
		repo:       p.Repo,
		offerings:  p.Offerings,
		email:      mailer,
		notifyTo:   p.Cfg.Email.NotifyTo,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (domain.SubmitResult, error) {
	if strings.TrimSpace(req.Botcheck) != "" {
		s.log.Info("honeypot submission discarded", zap.String("ip", req.IPAddress))
		return domain.SubmitResult{OK: true}, nil
	}

	record, err := normalizeSubmission(req)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if record.Service == "" && record.OfferingID != "" {
		record.Service = s.offeringLabel(ctx, record.OfferingID)
	}

	res, err := s.insert(ctx, record)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	s.obsMetrics.RecordLead(ctx, record.Flow, record.Source)
	if record.Flow == domain.FlowEnquiry {
		s.notify(*record)
	}
	return res, nil
}

func (s *Service) RecordPaidCheckout(ctx context.Context, paid domain.PaidCheckout) (domain.SubmitResult, error) {
	record := &domain.LeadRecord{
		Name:        strings.TrimSpace(paid.CustomerName),
		Email:       strings.TrimSpace(paid.CustomerEmail),
		Service:     strings.TrimSpace(paid.OfferingLabel),
		Flow:        domain.FlowPay,
		Source:      domain.SourceWebhook,
		OfferingID:  strings.TrimSpace(paid.OfferingID),
		SessionID:   strings.TrimSpace(paid.SessionID),
		AmountTotal: paid.AmountTotal,
		Currency:    strings.ToLower(strings.TrimSpace(paid.Currency)),
	}
	if record.Service == "" && record.OfferingID != "" {
		record.Service = s.offeringLabel(ctx, record.OfferingID)
	}

	res, err := s.insert(ctx, record)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	s.obsMetrics.RecordLead(ctx, record.Flow, record.Source)
	return res, nil
}

func (s *Service) ListLeads(ctx context.Context, req domain.ListRequest) (domain.ListResult, error) {
	limit := domain.ClampLimit(req.Limit)

	coll, err := s.mongo.Collection(ctx, s.collection)
	if err != nil {
		s.log.Error("lead store unavailable", zap.Error(err))
		return domain.ListResult{}, fmt.Errorf("%w: %w", domain.ErrStoreFailed, err)
	}

	items, err := s.repo.List(ctx, coll, limit)
	if err != nil {
		s.log.Error("list leads failed", zap.Int("limit", limit), zap.Error(err))
		return domain.ListResult{}, fmt.Errorf("%w: %w", domain.ErrStoreFailed, err)
	}
	total, err := s.repo.Count(ctx, coll)
	if err != nil {
		s.log.Error("count leads failed", zap.Error(err))
		return domain.ListResult{}, fmt.Errorf("%w: %w", domain.ErrStoreFailed, err)
	}
	if items == nil {
		items = []domain.LeadRecord{}
	}
	return domain.ListResult{Items: items, Total: total, Limit: limit}, nil
}

func (s *Service) insert(ctx context.Context, record *domain.LeadRecord) (domain.SubmitResult, error) {
	record.SubmittedAt = s.clock.Now().UTC()

	coll, err := s.mongo.Collection(ctx, s.collection)
	if err != nil {
		s.log.Error("lead store unavailable", zap.Error(err))
		return domain.SubmitResult{}, fmt.Errorf("%w: %w", domain.ErrStoreFailed, err)
	}
	id, err := s.repo.Insert(ctx, coll, record)
	if err != nil {
		s.log.Error("insert lead failed", zap.String("flow", record.Flow), zap.Error(err))
		return domain.SubmitResult{}, fmt.Errorf("%w: %w", domain.ErrStoreFailed, err)
	}

	s.log.Info("lead recorded",
		zap.String("lead_id", id.Hex()),
		zap.String("flow", record.Flow),
		zap.String("source", record.Source),
	)
	return domain.SubmitResult{OK: true, ID: id.Hex(), ReceivedAt: record.SubmittedAt}, nil
}

// offeringLabel is best effort; any lookup failure leaves the label empty.
func (s *Service) offeringLabel(ctx context.Context, offeringID string) string {
	if s.offerings == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	offering, err := s.offerings.FindOffering(ctx, offeringID)
	if err != nil {
		s.log.Debug("offering label lookup failed", zap.String("offering_id", offeringID), zap.Error(err))
		return ""
	}
	return offering.Label
}

func (s *Service) notify(record domain.LeadRecord) {
	if len(s.notifyTo) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		data := map[string]any{
			"ID":       record.ID.Hex(),
			"Flow":     record.Flow,
			"Name":     record.Name,
			"Email":    record.Email,
			"Company":  record.Company,
			"Service":  record.Service,
			"Budget":   record.Budget,
			"Timeline": record.Timeline,
			"Message":  record.Message,
		}
		if err := s.email.SendTemplate(ctx, s.notifyTo, "lead_received", data); err != nil {
			s.log.Warn("lead notification failed", zap.String("lead_id", record.ID.Hex()), zap.Error(err))
		}
	}()
}

func normalizeSubmission(req domain.SubmitRequest) (*domain.LeadRecord, error) {
	record := &domain.LeadRecord{
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.TrimSpace(req.Email),
		Company:    strings.TrimSpace(req.Company),
		Service:    strings.TrimSpace(req.Service),
		Budget:     strings.TrimSpace(req.Budget),
		Timeline:   strings.TrimSpace(req.Timeline),
		Message:    strings.TrimSpace(req.Message),
		OfferingID: strings.TrimSpace(req.OfferingID),
		Flow:       strings.ToLower(strings.TrimSpace(req.Flow)),
		Source:     domain.SourceForm,
		UserAgent:  strings.TrimSpace(req.UserAgent),
		IPAddress:  strings.TrimSpace(req.IPAddress),
	}
	if record.Flow == "" {
		record.Flow = domain.FlowEnquiry
	}

	var errs []error
	switch record.Flow {
	case domain.FlowEnquiry:
		if utf8.RuneCountInString(record.Name) < minNameLength {
			errs = append(errs, domain.ErrInvalidName)
		}
		if !emailPattern.MatchString(record.Email) {
			errs = append(errs, domain.ErrInvalidEmail)
		}
		if utf8.RuneCountInString(record.Message) < minMessageLength {
			errs = append(errs, domain.ErrInvalidMessage)
		}
	case domain.FlowPay:
		if utf8.RuneCountInString(record.Name) < minNameLength {
			errs = append(errs, domain.ErrInvalidName)
		}
		if record.Email != "" && !emailPattern.MatchString(record.Email) {
			errs = append(errs, domain.ErrInvalidEmail)
		}
	default:
		return nil, domain.ErrInvalidFlow
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return record, nil
}
