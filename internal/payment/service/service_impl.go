package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/smallbiznis/blsuntech/internal/checkout/domain"
	"github.com/smallbiznis/blsuntech/internal/clock"
	"github.com/smallbiznis/blsuntech/internal/config"
	leaddomain "github.com/smallbiznis/blsuntech/internal/lead/domain"
	obsmetrics "github.com/smallbiznis/blsuntech/internal/observability/metrics"
	stripeadapter "github.com/smallbiznis/blsuntech/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/blsuntech/internal/payment/domain"
	"github.com/smallbiznis/blsuntech/internal/providers/email"
	"github.com/smallbiznis/blsuntech/internal/ratelimit"
	stripesdk "github.com/stripe/stripe-go/v80"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	eventLockTTL      = 30 * time.Second
	claimStaleAfter   = 5 * time.Minute
	eventLockKey      = "payment:webhook:event:"
	notifyTimeout     = 15 * time.Second
	defaultMaxAttempt = 5
)

type eventLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Params struct {
	fx.In

	Cfg        config.Config
	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       paymentdomain.Repository
	Leads      leaddomain.Service
	Email      email.Provider      `optional:"true"`
	Locker     *ratelimit.Locker   `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        paymentdomain.Repository
	verifier    *stripeadapter.Verifier
	leads       leaddomain.Service
	email       email.Provider
	notifyTo    []string
	locker      eventLocker
	maxAttempts int
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	svc := &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.webhook"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		verifier:    stripeadapter.NewVerifier(p.Cfg.Stripe.WebhookSecret),
		leads:       p.Leads,
		email:       p.Email,
		notifyTo:    p.Cfg.Email.NotifyTo,
		maxAttempts: p.Cfg.Webhook.ReplayMaxAttempts,
		obsMetrics:  p.ObsMetrics,
	}
	if svc.email == nil {
		svc.email = email.NoOpProvider{}
	}
	if p.Locker != nil {
		svc.locker = p.Locker
	}
	if svc.maxAttempts <= 0 {
		svc.maxAttempts = defaultMaxAttempt
	}
	return svc
}

func (s *Service) IngestWebhook(ctx context.Context, payload []byte, signature string) (paymentdomain.IngestResult, error) {
	event, err := s.verifier.Verify(payload, signature)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrWebhookSecretMissing) {
			s.log.Error("webhook secret is not configured; rejecting delivery")
		} else {
			s.log.Warn("webhook signature verification failed", zap.Error(err))
		}
		return paymentdomain.IngestResult{}, err
	}

	eventType := string(event.Type)
	result := paymentdomain.IngestResult{EventID: event.ID, EventType: eventType}

	if s.locker != nil {
		key := eventLockKey + event.ID
		token, ok, err := s.locker.TryLock(ctx, key, eventLockTTL)
		switch {
		case err != nil:
			s.log.Warn("webhook event lock unavailable", zap.String("event_id", event.ID), zap.Error(err))
		case !ok:
			result.Outcome = paymentdomain.OutcomeInFlight
			s.obsMetrics.RecordWebhookEvent(ctx, eventType, result.Outcome)
			return result, nil
		default:
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
					s.log.Warn("webhook event lock release failed", zap.String("event_id", event.ID), zap.Error(err))
				}
			}()
		}
	}

	stored, fresh, err := s.record(ctx, event, payload)
	if err != nil {
		// Without a ledger row the event cannot be deduplicated; act on it anyway.
		s.log.Error("record webhook event failed", zap.String("event_id", event.ID), zap.Error(err))
		result.Outcome = s.outcome(s.dispatch(ctx, event))
		s.obsMetrics.RecordWebhookEvent(ctx, eventType, result.Outcome)
		return result, nil
	}
	if !fresh && stored.Done() {
		s.log.Info("duplicate webhook delivery acknowledged",
			zap.String("event_id", event.ID),
			zap.String("status", stored.Status),
		)
		result.Outcome = paymentdomain.OutcomeDuplicate
		s.obsMetrics.RecordWebhookEvent(ctx, eventType, result.Outcome)
		return result, nil
	}

	claimed, err := s.claim(ctx, stored)
	if err != nil {
		s.log.Error("claim webhook event failed", zap.String("event_id", event.ID), zap.Error(err))
	} else if !claimed {
		result.Outcome = paymentdomain.OutcomeInFlight
		s.obsMetrics.RecordWebhookEvent(ctx, eventType, result.Outcome)
		return result, nil
	}

	result.Outcome = s.settle(ctx, stored, event)
	s.obsMetrics.RecordWebhookEvent(ctx, eventType, result.Outcome)
	return result, nil
}

func (s *Service) ReplayFailed(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	now := s.clock.Now().UTC()
	items, err := s.repo.ListRetryable(ctx, s.db, s.maxAttempts, now.Add(-claimStaleAfter), limit)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for i := range items {
		if err := ctx.Err(); err != nil {
			return replayed, err
		}
		stored := &items[i]
		claimed, err := s.claim(ctx, stored)
		if err != nil {
			s.log.Warn("claim webhook event for replay failed", zap.String("event_id", stored.ProviderEventID), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}
		event, err := stripeadapter.DecodeEvent(stored.Payload)
		if err != nil {
			s.markFailed(ctx, stored, err)
			continue
		}
		outcome := s.settle(ctx, stored, event)
		s.obsMetrics.RecordWebhookEvent(ctx, stored.EventType, "replay_"+outcome)
		if outcome != paymentdomain.OutcomeFailed {
			replayed++
		}
	}
	return replayed, nil
}

// record inserts the ledger row, or loads the existing one on redelivery.
func (s *Service) record(ctx context.Context, event stripesdk.Event, payload []byte) (*paymentdomain.EventRecord, bool, error) {
	rec := &paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        paymentdomain.ProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		SessionID:       sessionID(event),
		Payload:         datatypes.JSON(payload),
		Status:          paymentdomain.StatusReceived,
		ReceivedAt:      s.clock.Now().UTC(),
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, rec)
	if err != nil {
		return nil, false, err
	}
	if inserted {
		return rec, true, nil
	}

	stored, err := s.repo.FindEvent(ctx, s.db, paymentdomain.ProviderStripe, event.ID)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, paymentdomain.ErrInvalidEvent
	}
	return stored, false, nil
}

// claim marks the event as processing so concurrent deliveries and replays do
// not dispatch it twice. A claim older than claimStaleAfter can be taken over.
func (s *Service) claim(ctx context.Context, stored *paymentdomain.EventRecord) (bool, error) {
	now := s.clock.Now().UTC()
	return s.repo.Claim(ctx, s.db, stored.ID, now, now.Add(-claimStaleAfter))
}

// settle dispatches the event and writes the outcome back to its ledger row.
func (s *Service) settle(ctx context.Context, stored *paymentdomain.EventRecord, event stripesdk.Event) string {
	err := s.dispatch(ctx, event)
	outcome := s.outcome(err)
	switch outcome {
	case paymentdomain.OutcomeFailed:
		s.markFailed(ctx, stored, err)
	case paymentdomain.OutcomeIgnored:
		s.markDone(ctx, stored, paymentdomain.StatusIgnored)
	default:
		s.markDone(ctx, stored, paymentdomain.StatusProcessed)
	}
	return outcome
}

var errIgnored = errors.New("event_ignored")

func (s *Service) dispatch(ctx context.Context, event stripesdk.Event) error {
	if string(event.Type) != paymentdomain.EventTypeCheckoutCompleted {
		s.log.Debug("webhook event ignored", zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))
		return errIgnored
	}

	completed, err := stripeadapter.ParseCompletedCheckout(event)
	if err != nil {
		return err
	}

	s.log.Info("checkout session completed",
		zap.String("event_id", completed.EventID),
		zap.String("session_id", completed.SessionID),
		zap.String("payment_status", completed.PaymentStatus),
		zap.String("customer_name", completed.CustomerName),
		zap.String("customer_email", completed.CustomerEmail),
		zap.String("offering_id", completed.OfferingID),
	)

	if _, err := s.leads.RecordPaidCheckout(ctx, leaddomain.PaidCheckout{
		SessionID:     completed.SessionID,
		CustomerName:  completed.CustomerName,
		CustomerEmail: completed.CustomerEmail,
		OfferingID:    completed.OfferingID,
		OfferingLabel: completed.OfferingLabel,
		AmountTotal:   completed.AmountTotal,
		Currency:      completed.Currency,
	}); err != nil {
		return err
	}

	s.notify(*completed)
	return nil
}

func (s *Service) outcome(err error) string {
	switch {
	case err == nil:
		return paymentdomain.OutcomeProcessed
	case errors.Is(err, errIgnored):
		return paymentdomain.OutcomeIgnored
	default:
		return paymentdomain.OutcomeFailed
	}
}

func (s *Service) notify(completed paymentdomain.CompletedCheckout) {
	if len(s.notifyTo) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		data := map[string]any{
			"SessionID":     completed.SessionID,
			"PaymentStatus": completed.PaymentStatus,
			"CustomerName":  completed.CustomerName,
			"CustomerEmail": completed.CustomerEmail,
			"OfferingLabel": completed.OfferingLabel,
			"Amount":        checkoutdomain.FormatAmount(completed.AmountTotal),
			"Currency":      strings.ToUpper(completed.Currency),
		}
		if err := s.email.SendTemplate(ctx, s.notifyTo, "payment_completed", data); err != nil {
			s.log.Warn("payment notification failed", zap.String("session_id", completed.SessionID), zap.Error(err))
		}
	}()
}

func (s *Service) markDone(ctx context.Context, stored *paymentdomain.EventRecord, status string) {
	if err := s.repo.MarkDone(ctx, s.db, stored.ID, status, s.clock.Now().UTC()); err != nil {
		s.log.Error("mark webhook event failed", zap.String("event_id", stored.ProviderEventID), zap.String("status", status), zap.Error(err))
	}
}

func (s *Service) markFailed(ctx context.Context, stored *paymentdomain.EventRecord, cause error) {
	s.log.Error("webhook event processing failed",
		zap.String("event_id", stored.ProviderEventID),
		zap.Int("attempts", stored.Attempts+1),
		zap.Error(cause),
	)
	if err := s.repo.MarkFailed(ctx, s.db, stored.ID, cause.Error()); err != nil {
		s.log.Error("mark webhook event failed", zap.String("event_id", stored.ProviderEventID), zap.Error(err))
	}
}

func sessionID(event stripesdk.Event) string {
	if event.Data == nil || event.Data.Object == nil {
		return ""
	}
	if string(event.Type) != paymentdomain.EventTypeCheckoutCompleted {
		return ""
	}
	id, _ := event.Data.Object["id"].(string)
	return id
}
