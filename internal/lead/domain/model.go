package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const CollectionName = "intakes"

const (
	FlowEnquiry = "enquiry"
	FlowPay     = "pay"

	SourceForm    = "form"
	SourceWebhook = "webhook"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// LeadRecord is one intake submission. Records are immutable after insert.
type LeadRecord struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Email       string             `bson:"email" json:"email"`
	Company     string             `bson:"company" json:"company"`
	Service     string             `bson:"service" json:"service"`
	Budget      string             `bson:"budget" json:"budget"`
	Timeline    string             `bson:"timeline" json:"timeline"`
	Message     string             `bson:"message" json:"message"`
	Flow        string             `bson:"flow" json:"flow"`
	Source      string             `bson:"source" json:"source"`
	OfferingID  string             `bson:"offeringId,omitempty" json:"offeringId,omitempty"`
	SessionID   string             `bson:"sessionId,omitempty" json:"sessionId,omitempty"`
	AmountTotal int64              `bson:"amountTotal,omitempty" json:"amountTotal,omitempty"`
	Currency    string             `bson:"currency,omitempty" json:"currency,omitempty"`
	UserAgent   string             `bson:"ua" json:"userAgent"`
	IPAddress   string             `bson:"ip" json:"ipAddress"`
	SubmittedAt time.Time          `bson:"ts" json:"submittedAt"`
}

// SubmitRequest is a lead as received from the public form.
type SubmitRequest struct {
	Name       string
	Email      string
	Company    string
	Service    string
	Budget     string
	Timeline   string
	Message    string
	OfferingID string
	Flow       string
	Botcheck   string
	UserAgent  string
	IPAddress  string
}

type SubmitResult struct {
	OK         bool      `json:"ok"`
	ID         string    `json:"id,omitempty"`
	ReceivedAt time.Time `json:"receivedAt,omitempty"`
}

// PaidCheckout is the lead recorded when a checkout completes.
type PaidCheckout struct {
	SessionID     string
	CustomerName  string
	CustomerEmail string
	OfferingID    string
	OfferingLabel string
	AmountTotal   int64
	Currency      string
}

type ListRequest struct {
	Limit int
}

type ListResult struct {
	Items []LeadRecord `json:"items"`
	Total int64        `json:"total"`
	Limit int          `json:"limit"`
}

// ClampLimit applies the default and bounds to a requested page size.
func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultListLimit
	case limit < 1:
		return 1
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
