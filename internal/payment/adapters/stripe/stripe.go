package stripe

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	checkoutdomain "github.com/smallbiznis/blsuntech/internal/checkout/domain"
	paymentdomain "github.com/smallbiznis/blsuntech/internal/payment/domain"
	stripesdk "github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
)

const DefaultTolerance = 5 * time.Minute

// Verifier checks Stripe-Signature headers against the endpoint secret.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: strings.TrimSpace(secret), tolerance: DefaultTolerance}
}

func (v *Verifier) Configured() bool {
	return v != nil && v.secret != ""
}

// Verify authenticates payload exactly as received and decodes the event.
func (v *Verifier) Verify(payload []byte, signature string) (stripesdk.Event, error) {
	if !v.Configured() {
		return stripesdk.Event{}, paymentdomain.ErrWebhookSecretMissing
	}
	if strings.TrimSpace(signature) == "" {
		return stripesdk.Event{}, paymentdomain.ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripesdk.Event{}, fmt.Errorf("%w: %w", paymentdomain.ErrInvalidSignature, err)
	}
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(string(event.Type)) == "" {
		return stripesdk.Event{}, paymentdomain.ErrInvalidEvent
	}
	return event, nil
}

// DecodeEvent decodes a payload that was verified earlier.
func DecodeEvent(payload []byte) (stripesdk.Event, error) {
	var event stripesdk.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return stripesdk.Event{}, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return stripesdk.Event{}, paymentdomain.ErrInvalidEvent
	}
	return event, nil
}

// ParseCompletedCheckout extracts the session of a checkout.session.completed event.
func ParseCompletedCheckout(event stripesdk.Event) (*paymentdomain.CompletedCheckout, error) {
	if string(event.Type) != paymentdomain.EventTypeCheckoutCompleted {
		return nil, paymentdomain.ErrInvalidEvent
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, paymentdomain.ErrInvalidPayload
	}

	var session stripesdk.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	metadata := session.Metadata
	out := &paymentdomain.CompletedCheckout{
		EventID:       event.ID,
		SessionID:     session.ID,
		PaymentStatus: string(session.PaymentStatus),
		CustomerName:  metadata[checkoutdomain.MetadataCustomerName],
		CustomerEmail: session.CustomerEmail,
		OfferingID:    metadata[checkoutdomain.MetadataProjectPriceID],
		OfferingLabel: metadata[checkoutdomain.MetadataProjectLabel],
		AmountTotal:   session.AmountTotal,
		Currency:      strings.ToLower(string(session.Currency)),
	}
	if out.OfferingID == "" {
		out.OfferingID = metadata[checkoutdomain.MetadataProjectID]
	}
	if details := session.CustomerDetails; details != nil {
		if out.CustomerEmail == "" {
			out.CustomerEmail = details.Email
		}
		if out.CustomerName == "" {
			out.CustomerName = details.Name
		}
	}
	return out, nil
}
