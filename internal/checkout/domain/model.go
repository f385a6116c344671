package domain

import "strings"

const (
	StatusOpen     = "open"
	StatusComplete = "complete"
	StatusExpired  = "expired"

	PaymentStatusPaid              = "paid"
	PaymentStatusUnpaid            = "unpaid"
	PaymentStatusNoPaymentRequired = "no_payment_required"
)

// Metadata keys stamped on every session the gateway creates.
const (
	MetadataCustomerName   = "customer_name"
	MetadataProjectID      = "project_id"
	MetadataProjectPriceID = "project_price_id"
	MetadataProjectLabel   = "project_label"
)

// MinUnitAmount is the smallest charge the processor accepts, in minor units.
const MinUnitAmount = 50

var sessionIDPrefixes = []string{"cs_test_", "cs_live_"}

type CreateSessionRequest struct {
	CustomerName string
	OfferingID   string
}

type CreateSessionResult struct {
	RedirectURL string `json:"redirectUrl"`
	SessionID   string `json:"sessionId"`
}

type Customer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type PaymentIntent struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	LatestCharge string `json:"latestCharge,omitempty"`
}

// Session is a read-only projection of a processor checkout session. It is
// always fetched fresh and never stored.
type Session struct {
	ID            string            `json:"id"`
	OfferingID    string            `json:"offeringId"`
	CustomerName  string            `json:"customerName"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"paymentStatus"`
	AmountTotal   int64             `json:"amountTotal"`
	Currency      string            `json:"currency"`
	Customer      *Customer         `json:"customer"`
	Metadata      map[string]string `json:"metadata"`
	PaymentIntent *PaymentIntent    `json:"paymentIntent"`
	Created       int64             `json:"created,omitempty"`
}

func (s Session) IsPaid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

// OfferingLabel returns the label recorded at creation time.
func (s Session) OfferingLabel() string {
	return s.Metadata[MetadataProjectLabel]
}

// ValidSessionID reports whether id has a test or live checkout session prefix.
func ValidSessionID(id string) bool {
	for _, prefix := range sessionIDPrefixes {
		if strings.HasPrefix(id, prefix) && len(id) > len(prefix) {
			return true
		}
	}
	return false
}
