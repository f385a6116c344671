package domain

import (
	"context"
	"errors"
	"fmt"
)

type Service interface {
	// IngestWebhook verifies and records one raw delivery. Any error other
	// than a signature failure is already recorded against the event.
	IngestWebhook(ctx context.Context, payload []byte, signature string) (IngestResult, error)
	// ReplayFailed re-dispatches failed events and returns how many succeeded.
	ReplayFailed(ctx context.Context, limit int) (int, error)
}

var (
	ErrInvalidSignature     = errors.New("invalid_signature")
	ErrWebhookSecretMissing = fmt.Errorf("webhook_secret_missing: %w", ErrInvalidSignature)
	ErrInvalidPayload       = errors.New("invalid_payload")
	ErrInvalidEvent         = errors.New("invalid_event")
)
