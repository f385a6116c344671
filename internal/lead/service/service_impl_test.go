package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/blsuntech/internal/clock"
	"github.com/smallbiznis/blsuntech/internal/config"
	"github.com/smallbiznis/blsuntech/internal/lead/domain"
	offeringdomain "github.com/smallbiznis/blsuntech/internal/offering/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Insert(ctx context.Context, coll *mongo.Collection, record *domain.LeadRecord) (primitive.ObjectID, error) {
	args := m.Called(ctx, coll, record)
	return args.Get(0).(primitive.ObjectID), args.Error(1)
}

func (m *mockRepo) List(ctx context.Context, coll *mongo.Collection, limit int) ([]domain.LeadRecord, error) {
	args := m.Called(ctx, coll, limit)
	items, _ := args.Get(0).([]domain.LeadRecord)
	return items, args.Error(1)
}

func (m *mockRepo) Count(ctx context.Context, coll *mongo.Collection) (int64, error) {
	args := m.Called(ctx, coll)
	return args.Get(0).(int64), args.Error(1)
}

type stubCollections struct {
	err error
}

func (s stubCollections) Collection(context.Context, string) (*mongo.Collection, error) {
	return nil, s.err
}

type stubOfferings struct{}

func (stubOfferings) ListOfferings(context.Context) ([]offeringdomain.Offering, error) {
	return nil, nil
}

func (stubOfferings) FindOffering(_ context.Context, id string) (offeringdomain.Offering, error) {
	if id == "portfolio" {
		return offeringdomain.Offering{ID: id, Label: "Portfolio Website", Amount: 10000, Active: true}, nil
	}
	return offeringdomain.Offering{}, offeringdomain.ErrNotFound
}

type recordingMailer struct {
	sent chan map[string]any
}

func (r *recordingMailer) Send(context.Context, []string, string, string) error { return nil }

func (r *recordingMailer) SendTemplate(_ context.Context, _ []string, name string, data any) error {
	if name == "lead_received" {
		r.sent <- data.(map[string]any)
	}
	return nil
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestService(repo domain.Repository, mailer *recordingMailer) *Service {
	p := Params{
		Cfg:       config.Config{Email: config.EmailConfig{NotifyTo: []string{"ops@blsuntech.test"}}},
		Log:       zap.NewNop(),
		Clock:     clock.NewFakeClock(fixedNow),
		Repo:      repo,
		Offerings: stubOfferings{},
	}
	if mailer != nil {
		p.Email = mailer
	}
	return newService(p, stubCollections{})
}

func validEnquiry() domain.SubmitRequest {
	return domain.SubmitRequest{
		Name:    "Ada Lovelace",
		Email:   "ada@example.com",
		Message: "I need a new portfolio site.",
	}
}

func TestSubmitHoneypotIsNotStored(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo, nil)

	req := validEnquiry()
	req.Botcheck = "i am a bot"
	res, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Empty(t, res.ID)
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitEnquiryStoresWithServerTimestamp(t *testing.T) {
	repo := &mockRepo{}
	id := primitive.NewObjectID()
	repo.On("Insert", mock.Anything, mock.Anything, mock.MatchedBy(func(r *domain.LeadRecord) bool {
		return r.Flow == domain.FlowEnquiry &&
			r.Source == domain.SourceForm &&
			r.Name == "Ada Lovelace" &&
			r.Service == "Portfolio Website" &&
			r.SubmittedAt.Equal(fixedNow)
	})).Return(id, nil).Once()

	mailer := &recordingMailer{sent: make(chan map[string]any, 1)}
	svc := newTestService(repo, mailer)

	req := validEnquiry()
	req.Name = "  Ada Lovelace "
	req.OfferingID = "portfolio"
	res, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, id.Hex(), res.ID)
	assert.True(t, res.ReceivedAt.Equal(fixedNow))
	repo.AssertExpectations(t)

	select {
	case data := <-mailer.sent:
		assert.Equal(t, "Ada Lovelace", data["Name"])
	case <-time.After(2 * time.Second):
		t.Fatalf("expected lead notification")
	}
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.SubmitRequest)
		wantErr []error
	}{
		{
			name:    "short name",
			mutate:  func(r *domain.SubmitRequest) { r.Name = " A " },
			wantErr: []error{domain.ErrInvalidName},
		},
		{
			name:    "bad email",
			mutate:  func(r *domain.SubmitRequest) { r.Email = "ada at example" },
			wantErr: []error{domain.ErrInvalidEmail},
		},
		{
			name:    "short message",
			mutate:  func(r *domain.SubmitRequest) { r.Message = "  hi   " },
			wantErr: []error{domain.ErrInvalidMessage},
		},
		{
			name: "everything wrong",
			mutate: func(r *domain.SubmitRequest) {
				r.Name, r.Email, r.Message = "", "", ""
			},
			wantErr: []error{domain.ErrInvalidName, domain.ErrInvalidEmail, domain.ErrInvalidMessage},
		},
		{
			name:    "unknown flow",
			mutate:  func(r *domain.SubmitRequest) { r.Flow = "subscribe" },
			wantErr: []error{domain.ErrInvalidFlow},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{}
			svc := newTestService(repo, nil)

			req := validEnquiry()
			tt.mutate(&req)
			_, err := svc.Submit(context.Background(), req)
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.True(t, errors.Is(err, want), "expected %v in %v", want, err)
			}
			repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSubmitPayFlowNeedsOnlyName(t *testing.T) {
	repo := &mockRepo{}
	repo.On("Insert", mock.Anything, mock.Anything, mock.Anything).Return(primitive.NewObjectID(), nil).Once()
	svc := newTestService(repo, nil)

	_, err := svc.Submit(context.Background(), domain.SubmitRequest{Name: "Ada", Flow: "PAY"})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), domain.SubmitRequest{Name: "Ada", Flow: "pay", Email: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
	repo.AssertNumberOfCalls(t, "Insert", 1)
}

func TestRecordPaidCheckout(t *testing.T) {
	repo := &mockRepo{}
	repo.On("Insert", mock.Anything, mock.Anything, mock.MatchedBy(func(r *domain.LeadRecord) bool {
		return r.Flow == domain.FlowPay &&
			r.Source == domain.SourceWebhook &&
			r.SessionID == "cs_test_1" &&
			r.AmountTotal == 1000000 &&
			r.Currency == "usd"
	})).Return(primitive.NewObjectID(), nil).Once()
	svc := newTestService(repo, nil)

	res, err := svc.RecordPaidCheckout(context.Background(), domain.PaidCheckout{
		SessionID:     "cs_test_1",
		CustomerName:  "Ada",
		OfferingID:    "portfolio",
		OfferingLabel: "Portfolio Website",
		AmountTotal:   1000000,
		Currency:      "USD",
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	repo.AssertExpectations(t)
}

func TestListLeadsClampsLimitAndCountsEverything(t *testing.T) {
	tests := []struct {
		requested int
		want      int
	}{
		{requested: 0, want: 50},
		{requested: 500, want: 200},
		{requested: -3, want: 1},
		{requested: 20, want: 20},
	}

	for _, tt := range tests {
		repo := &mockRepo{}
		repo.On("List", mock.Anything, mock.Anything, tt.want).Return([]domain.LeadRecord{{Name: "Ada"}}, nil).Once()
		repo.On("Count", mock.Anything, mock.Anything).Return(int64(250), nil).Once()
		svc := newTestService(repo, nil)

		res, err := svc.ListLeads(context.Background(), domain.ListRequest{Limit: tt.requested})
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.Limit)
		assert.Equal(t, int64(250), res.Total)
		assert.Len(t, res.Items, 1)
		repo.AssertExpectations(t)
	}
}

func TestStoreUnavailable(t *testing.T) {
	repo := &mockRepo{}
	p := Params{Log: zap.NewNop(), Clock: clock.NewFakeClock(fixedNow), Repo: repo}
	svc := newService(p, stubCollections{err: errors.New("no servers")})

	_, err := svc.Submit(context.Background(), validEnquiry())
	assert.ErrorIs(t, err, domain.ErrStoreFailed)

	_, err = svc.ListLeads(context.Background(), domain.ListRequest{})
	assert.ErrorIs(t, err, domain.ErrStoreFailed)
}
