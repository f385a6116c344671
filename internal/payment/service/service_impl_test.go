package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/blsuntech/internal/clock"
	"github.com/smallbiznis/blsuntech/internal/config"
	leaddomain "github.com/smallbiznis/blsuntech/internal/lead/domain"
	paymentdomain "github.com/smallbiznis/blsuntech/internal/payment/domain"
	"github.com/smallbiznis/blsuntech/internal/payment/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "whsec_test_secret"

type recordingLeads struct {
	mu       sync.Mutex
	paid     []leaddomain.PaidCheckout
	failNext int
}

func (r *recordingLeads) Submit(context.Context, leaddomain.SubmitRequest) (leaddomain.SubmitResult, error) {
	return leaddomain.SubmitResult{}, nil
}

func (r *recordingLeads) RecordPaidCheckout(_ context.Context, paid leaddomain.PaidCheckout) (leaddomain.SubmitResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext > 0 {
		r.failNext--
		return leaddomain.SubmitResult{}, leaddomain.ErrStoreFailed
	}
	r.paid = append(r.paid, paid)
	return leaddomain.SubmitResult{OK: true, ID: "lead"}, nil
}

func (r *recordingLeads) ListLeads(context.Context, leaddomain.ListRequest) (leaddomain.ListResult, error) {
	return leaddomain.ListResult{}, nil
}

func (r *recordingLeads) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paid)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&paymentdomain.EventRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, secret string, leads leaddomain.Service) (*Service, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	node, err := snowflake.NewNode(7)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	cfg := config.Config{
		Stripe:  config.StripeConfig{WebhookSecret: secret},
		Webhook: config.WebhookConfig{ReplayMaxAttempts: 3},
	}
	svc := NewService(Params{
		Cfg:   cfg,
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
		Leads: leads,
	}).(*Service)
	return svc, db
}

func eventPayload(t *testing.T, eventID, eventType string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":      eventID,
		"object":  "event",
		"type":    eventType,
		"created": 1775044800,
		"data": map[string]any{
			"object": map[string]any{
				"id":             "cs_test_paid",
				"object":         "checkout.session",
				"status":         "complete",
				"payment_status": "paid",
				"amount_total":   1000000,
				"currency":       "usd",
				"customer_details": map[string]any{
					"email": "ada@example.com",
					"name":  "Ada L.",
				},
				"metadata": map[string]any{
					"customer_name": "Ada",
					"project_id":    "portfolio",
					"project_label": "Portfolio Website",
				},
			},
		},
	})
	require.NoError(t, err)
	return payload
}

func sign(payload []byte, secret string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload,
		Secret:  secret,
	}).Header
}

func loadEvent(t *testing.T, db *gorm.DB, eventID string) paymentdomain.EventRecord {
	t.Helper()
	var rec paymentdomain.EventRecord
	if err := db.Where("provider_event_id = ?", eventID).Take(&rec).Error; err != nil {
		t.Fatalf("load event %s: %v", eventID, err)
	}
	return rec
}

func TestIngestWebhookRejectsTamperedPayload(t *testing.T) {
	leads := &recordingLeads{}
	svc, db := newTestService(t, testSecret, leads)

	payload := eventPayload(t, "evt_tampered", paymentdomain.EventTypeCheckoutCompleted)
	header := sign(payload, testSecret)
	tampered := bytes.Replace(payload, []byte("1000000"), []byte("1000001"), 1)
	require.NotEqual(t, payload, tampered)

	_, err := svc.IngestWebhook(context.Background(), tampered, header)
	require.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	_, err = svc.IngestWebhook(context.Background(), payload, "")
	require.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	_, err = svc.IngestWebhook(context.Background(), payload, sign(payload, "whsec_other"))
	require.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	var count int64
	db.Model(&paymentdomain.EventRecord{}).Count(&count)
	assert.Zero(t, count)
	assert.Zero(t, leads.count())
}

func TestIngestWebhookMissingSecret(t *testing.T) {
	svc, _ := newTestService(t, "", &recordingLeads{})
	payload := eventPayload(t, "evt_1", paymentdomain.EventTypeCheckoutCompleted)

	_, err := svc.IngestWebhook(context.Background(), payload, sign(payload, testSecret))
	assert.ErrorIs(t, err, paymentdomain.ErrWebhookSecretMissing)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
}

func TestIngestWebhookReplayHasSingleSideEffect(t *testing.T) {
	leads := &recordingLeads{}
	svc, db := newTestService(t, testSecret, leads)

	payload := eventPayload(t, "evt_replay", paymentdomain.EventTypeCheckoutCompleted)

	first, err := svc.IngestWebhook(context.Background(), payload, sign(payload, testSecret))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeProcessed, first.Outcome)

	second, err := svc.IngestWebhook(context.Background(), payload, sign(payload, testSecret))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeDuplicate, second.Outcome)

	require.Equal(t, 1, leads.count())
	paid := leads.paid[0]
	assert.Equal(t, "cs_test_paid", paid.SessionID)
	assert.Equal(t, "Ada", paid.CustomerName)
	assert.Equal(t, "ada@example.com", paid.CustomerEmail)
	assert.Equal(t, "portfolio", paid.OfferingID)
	assert.Equal(t, int64(1000000), paid.AmountTotal)

	rec := loadEvent(t, db, "evt_replay")
	assert.Equal(t, paymentdomain.StatusProcessed, rec.Status)
	assert.Equal(t, "cs_test_paid", rec.SessionID)
	assert.NotNil(t, rec.ProcessedAt)
}

func TestIngestWebhookIgnoresOtherTypes(t *testing.T) {
	leads := &recordingLeads{}
	svc, db := newTestService(t, testSecret, leads)

	payload := eventPayload(t, "evt_other", "payment_intent.created")
	res, err := svc.IngestWebhook(context.Background(), payload, sign(payload, testSecret))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeIgnored, res.Outcome)
	assert.Zero(t, leads.count())

	rec := loadEvent(t, db, "evt_other")
	assert.Equal(t, paymentdomain.StatusIgnored, rec.Status)
	assert.Empty(t, rec.SessionID)
}

func TestFailedEventIsReplayed(t *testing.T) {
	leads := &recordingLeads{failNext: 1}
	svc, db := newTestService(t, testSecret, leads)

	payload := eventPayload(t, "evt_retry", paymentdomain.EventTypeCheckoutCompleted)
	res, err := svc.IngestWebhook(context.Background(), payload, sign(payload, testSecret))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeFailed, res.Outcome)

	rec := loadEvent(t, db, "evt_retry")
	assert.Equal(t, paymentdomain.StatusFailed, rec.Status)
	assert.Equal(t, 1, rec.Attempts)
	assert.Contains(t, rec.LastError, leaddomain.ErrStoreFailed.Error())

	replayed, err := svc.ReplayFailed(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, replayed)
	assert.Equal(t, 1, leads.count())

	rec = loadEvent(t, db, "evt_retry")
	assert.Equal(t, paymentdomain.StatusProcessed, rec.Status)

	replayed, err = svc.ReplayFailed(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, replayed)
}

func TestReplayStopsAtMaxAttempts(t *testing.T) {
	leads := &recordingLeads{failNext: 100}
	svc, db := newTestService(t, testSecret, leads)

	payload := eventPayload(t, "evt_poison", paymentdomain.EventTypeCheckoutCompleted)
	_, err := svc.IngestWebhook(context.Background(), payload, sign(payload, testSecret))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.ReplayFailed(context.Background(), 10)
		require.NoError(t, err)
	}

	rec := loadEvent(t, db, "evt_poison")
	assert.Equal(t, 3, rec.Attempts)
	assert.Equal(t, paymentdomain.StatusFailed, rec.Status)
}

type stubLocker struct {
	held bool
	err  error
}

func (s *stubLocker) TryLock(context.Context, string, time.Duration) (string, bool, error) {
	if s.err != nil {
		return "", false, s.err
	}
	return "token", !s.held, nil
}

func (s *stubLocker) Release(context.Context, string, string) error { return nil }

func TestIngestWebhookLockContention(t *testing.T) {
	leads := &recordingLeads{}
	svc, _ := newTestService(t, testSecret, leads)
	payload := eventPayload(t, "evt_locked", paymentdomain.EventTypeCheckoutCompleted)

	svc.locker = &stubLocker{held: true}
	res, err := svc.IngestWebhook(context.Background(), payload, sign(payload, testSecret))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeInFlight, res.Outcome)
	assert.Zero(t, leads.count())

	svc.locker = &stubLocker{err: errors.New("redis down")}
	res, err = svc.IngestWebhook(context.Background(), payload, sign(payload, testSecret))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeProcessed, res.Outcome)
	assert.Equal(t, 1, leads.count())
}

type blockingLeads struct {
	recordingLeads
	entered chan struct{}
	release chan struct{}
}

func (b *blockingLeads) RecordPaidCheckout(ctx context.Context, paid leaddomain.PaidCheckout) (leaddomain.SubmitResult, error) {
	close(b.entered)
	<-b.release
	return b.recordingLeads.RecordPaidCheckout(ctx, paid)
}

func TestConcurrentDeliveryWithoutLockDispatchesOnce(t *testing.T) {
	leads := &blockingLeads{entered: make(chan struct{}), release: make(chan struct{})}
	svc, db := newTestService(t, testSecret, leads)
	payload := eventPayload(t, "evt_concurrent", paymentdomain.EventTypeCheckoutCompleted)

	firstDone := make(chan paymentdomain.IngestResult, 1)
	go func() {
		res, err := svc.IngestWebhook(context.Background(), payload, sign(payload, testSecret))
		assert.NoError(t, err)
		firstDone <- res
	}()

	select {
	case <-leads.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("first delivery never dispatched")
	}
	assert.Equal(t, paymentdomain.StatusProcessing, loadEvent(t, db, "evt_concurrent").Status)

	second, err := svc.IngestWebhook(context.Background(), payload, sign(payload, testSecret))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeInFlight, second.Outcome)

	close(leads.release)
	first := <-firstDone
	assert.Equal(t, paymentdomain.OutcomeProcessed, first.Outcome)
	assert.Equal(t, 1, leads.count())
	assert.Equal(t, paymentdomain.StatusProcessed, loadEvent(t, db, "evt_concurrent").Status)
}

func TestReplayTakesOverStaleClaim(t *testing.T) {
	leads := &recordingLeads{}
	svc, db := newTestService(t, testSecret, leads)
	now := svc.clock.Now().UTC()

	fresh := now.Add(-time.Minute)
	stale := now.Add(-time.Hour)
	for _, row := range []struct {
		id        snowflake.ID
		eventID   string
		claimedAt time.Time
	}{
		{id: 101, eventID: "evt_claimed", claimedAt: fresh},
		{id: 102, eventID: "evt_abandoned", claimedAt: stale},
	} {
		claimedAt := row.claimedAt
		require.NoError(t, db.Create(&paymentdomain.EventRecord{
			ID:              row.id,
			Provider:        paymentdomain.ProviderStripe,
			ProviderEventID: row.eventID,
			EventType:       paymentdomain.EventTypeCheckoutCompleted,
			Payload:         eventPayload(t, row.eventID, paymentdomain.EventTypeCheckoutCompleted),
			Status:          paymentdomain.StatusProcessing,
			ReceivedAt:      stale,
			ClaimedAt:       &claimedAt,
		}).Error)
	}

	replayed, err := svc.ReplayFailed(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, replayed)
	assert.Equal(t, 1, leads.count())

	assert.Equal(t, paymentdomain.StatusProcessing, loadEvent(t, db, "evt_claimed").Status)
	assert.Equal(t, paymentdomain.StatusProcessed, loadEvent(t, db, "evt_abandoned").Status)
}
