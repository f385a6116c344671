package domain

import (
	"context"
	"errors"
)

type Service interface {
	// Submit validates and stores a form submission. Honeypot hits return a
	// success result without storing anything.
	Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error)
	// RecordPaidCheckout stores a pay-flow lead for a completed checkout.
	RecordPaidCheckout(ctx context.Context, paid PaidCheckout) (SubmitResult, error)
	ListLeads(ctx context.Context, req ListRequest) (ListResult, error)
}

// Validation failures are joined with errors.Join so every failing field is
// reported at once.
var (
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidEmail   = errors.New("invalid_email")
	ErrInvalidMessage = errors.New("invalid_message")
	ErrInvalidFlow    = errors.New("invalid_flow")
	ErrStoreFailed    = errors.New("lead_store_failed")
)
