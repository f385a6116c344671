package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/blsuntech/internal/checkout/domain"
	"github.com/smallbiznis/blsuntech/internal/config"
	obsmetrics "github.com/smallbiznis/blsuntech/internal/observability/metrics"
	offeringdomain "github.com/smallbiznis/blsuntech/internal/offering/domain"
	"github.com/smallbiznis/blsuntech/internal/providers/pdf"
	stripeprovider "github.com/smallbiznis/blsuntech/internal/providers/stripe"
	stripesdk "github.com/stripe/stripe-go/v80"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	Offerings  offeringdomain.Service
	Stripe     stripeprovider.API
	PDF        pdf.Provider
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	clientURL  string
	offerings  offeringdomain.Service
	stripe     stripeprovider.API
	pdf        pdf.Provider
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("checkout.service"),
		clientURL:  strings.TrimRight(strings.TrimSpace(p.Cfg.ClientURL), "/"),
		offerings:  p.Offerings,
		stripe:     p.Stripe,
		pdf:        p.PDF,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreateSession(ctx context.Context, req domain.CreateSessionRequest) (domain.CreateSessionResult, error) {
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return domain.CreateSessionResult{}, domain.ErrInvalidName
	}
	offeringID := strings.TrimSpace(req.OfferingID)
	if offeringID == "" {
		return domain.CreateSessionResult{}, domain.ErrInvalidOffering
	}

	offering, err := s.offerings.FindOffering(ctx, offeringID)
	if err != nil {
		switch {
		case errors.Is(err, offeringdomain.ErrInvalidID),
			errors.Is(err, offeringdomain.ErrNotFound),
			errors.Is(err, offeringdomain.ErrInactive):
			return domain.CreateSessionResult{}, domain.ErrInvalidOffering
		default:
			s.log.Error("offering lookup failed", zap.String("offering_id", offeringID), zap.Error(err))
			return domain.CreateSessionResult{}, upstream(err)
		}
	}

	params, err := s.buildParams(name, offering)
	if err != nil {
		return domain.CreateSessionResult{}, err
	}

	kind := offeringKind(offering)
	session, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		s.obsMetrics.RecordCheckoutSession(ctx, kind, "failed")
		s.log.Error("create checkout session failed",
			zap.String("offering_id", offering.ID),
			zap.Error(err),
		)
		return domain.CreateSessionResult{}, upstream(err)
	}
	if session == nil || session.ID == "" || session.URL == "" {
		s.obsMetrics.RecordCheckoutSession(ctx, kind, "failed")
		return domain.CreateSessionResult{}, fmt.Errorf("%w: empty checkout session", domain.ErrUpstream)
	}

	s.obsMetrics.RecordCheckoutSession(ctx, kind, "created")
	s.log.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("offering_id", offering.ID),
	)
	return domain.CreateSessionResult{RedirectURL: session.URL, SessionID: session.ID}, nil
}

func (s *Service) buildParams(name string, offering offeringdomain.Offering) (*stripesdk.CheckoutSessionParams, error) {
	params := &stripesdk.CheckoutSessionParams{
		Mode:               stripesdk.String(string(stripesdk.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripesdk.StringSlice([]string{"card"}),
		SuccessURL:         stripesdk.String(s.clientURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripesdk.String(s.clientURL + "/payment/cancel"),
	}
	params.AddMetadata(domain.MetadataCustomerName, name)
	params.AddMetadata(domain.MetadataProjectLabel, offering.Label)

	if offering.IsProviderPrice() {
		params.LineItems = []*stripesdk.CheckoutSessionLineItemParams{{
			Price:    stripesdk.String(offering.ID),
			Quantity: stripesdk.Int64(1),
		}}
		params.AddMetadata(domain.MetadataProjectPriceID, offering.ID)
		return params, nil
	}

	unitAmount := offering.UnitAmount()
	if unitAmount < domain.MinUnitAmount {
		return nil, domain.ErrAmountTooSmall
	}
	currency := strings.ToLower(strings.TrimSpace(offering.Currency))
	if currency == "" {
		currency = "usd"
	}
	params.LineItems = []*stripesdk.CheckoutSessionLineItemParams{{
		PriceData: &stripesdk.CheckoutSessionLineItemPriceDataParams{
			Currency: stripesdk.String(currency),
			ProductData: &stripesdk.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripesdk.String(offering.Label),
			},
			UnitAmount: stripesdk.Int64(unitAmount),
		},
		Quantity: stripesdk.Int64(1),
	}}
	params.AddMetadata(domain.MetadataProjectID, offering.ID)
	return params, nil
}

func (s *Service) GetSession(ctx context.Context, id string) (domain.Session, error) {
	id = strings.TrimSpace(id)
	if !domain.ValidSessionID(id) {
		return domain.Session{}, domain.ErrInvalidSessionID
	}

	session, err := s.stripe.GetCheckoutSession(ctx, id)
	if err != nil {
		if stripeprovider.IsResourceMissing(err) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		s.log.Error("get checkout session failed", zap.String("session_id", id), zap.Error(err))
		return domain.Session{}, upstream(err)
	}
	if session == nil {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return FromCheckoutSession(session), nil
}

func (s *Service) Receipt(ctx context.Context, id string) ([]byte, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.IsPaid() {
		return nil, domain.ErrSessionNotPaid
	}

	data := pdf.ReceiptData{
		SessionID:     session.ID,
		CustomerName:  session.CustomerName,
		OfferingLabel: session.OfferingLabel(),
		Amount:        domain.FormatAmount(session.AmountTotal),
		Currency:      strings.ToUpper(session.Currency),
	}
	if session.Customer != nil {
		data.CustomerEmail = session.Customer.Email
		if data.CustomerName == "" {
			data.CustomerName = session.Customer.Name
		}
	}
	if session.PaymentIntent != nil {
		data.PaymentIntentID = session.PaymentIntent.ID
	}
	if session.Created > 0 {
		data.DatePaid = time.Unix(session.Created, 0).UTC().Format("2006-01-02")
	}

	out, err := s.pdf.GenerateReceipt(ctx, data)
	if err != nil {
		s.log.Error("render receipt failed", zap.String("session_id", session.ID), zap.Error(err))
		return nil, err
	}
	return out, nil
}

// FromCheckoutSession projects a processor session onto the public shape.
func FromCheckoutSession(session *stripesdk.CheckoutSession) domain.Session {
	out := domain.Session{
		ID:            session.ID,
		Status:        string(session.Status),
		PaymentStatus: string(session.PaymentStatus),
		AmountTotal:   session.AmountTotal,
		Currency:      strings.ToLower(string(session.Currency)),
		Metadata:      session.Metadata,
		Created:       session.Created,
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	out.CustomerName = out.Metadata[domain.MetadataCustomerName]
	out.OfferingID = out.Metadata[domain.MetadataProjectPriceID]
	if out.OfferingID == "" {
		out.OfferingID = out.Metadata[domain.MetadataProjectID]
	}
	if details := session.CustomerDetails; details != nil {
		out.Customer = &domain.Customer{Email: details.Email, Name: details.Name}
	}
	if pi := session.PaymentIntent; pi != nil {
		intent := &domain.PaymentIntent{
			ID:       pi.ID,
			Status:   string(pi.Status),
			Amount:   pi.Amount,
			Currency: strings.ToLower(string(pi.Currency)),
		}
		if pi.LatestCharge != nil {
			intent.LatestCharge = pi.LatestCharge.ID
		}
		out.PaymentIntent = intent
	}
	return out
}

func offeringKind(offering offeringdomain.Offering) string {
	if offering.IsProviderPrice() {
		return "price"
	}
	return "static"
}

func upstream(err error) error {
	if stripeprovider.IsTimeout(err) {
		return fmt.Errorf("%w: %w", domain.ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrUpstream, err)
}
