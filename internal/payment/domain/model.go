package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const ProviderStripe = "stripe"

const EventTypeCheckoutCompleted = "checkout.session.completed"

const (
	StatusReceived   = "received"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusIgnored    = "ignored"
	StatusFailed     = "failed"
)

// EventRecord is one delivered webhook event. (provider, provider_event_id)
// is unique so a redelivery never inserts a second row.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:varchar(32);not null;uniqueIndex:ux_payment_events_provider_event"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_payment_events_provider_event"`
	EventType       string         `json:"event_type" gorm:"type:varchar(128);not null"`
	SessionID       string         `json:"session_id" gorm:"type:varchar(255);index"`
	Payload         datatypes.JSON `json:"payload" gorm:"not null"`
	Status          string         `json:"status" gorm:"type:varchar(16);not null;index"`
	Attempts        int            `json:"attempts" gorm:"not null;default:0"`
	LastError       string         `json:"last_error" gorm:"type:text"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ClaimedAt       *time.Time     `json:"claimed_at"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

// Done reports whether the event needs no further work.
func (e EventRecord) Done() bool {
	return e.Status == StatusProcessed || e.Status == StatusIgnored
}

// CompletedCheckout is the part of a checkout.session.completed event the
// intake funnel acts on.
type CompletedCheckout struct {
	EventID       string
	SessionID     string
	PaymentStatus string
	CustomerName  string
	CustomerEmail string
	OfferingID    string
	OfferingLabel string
	AmountTotal   int64
	Currency      string
}

// IngestResult describes what happened to one delivery.
type IngestResult struct {
	EventID   string
	EventType string
	Outcome   string
}

const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeInFlight  = "in_flight"
	OutcomeFailed    = "failed"
)
