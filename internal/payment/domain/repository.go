package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertEvent reports false when the event was already recorded.
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*EventRecord, error)
	// Claim moves a received, failed or stale processing event to processing.
	// It reports false when another delivery already holds the event.
	Claim(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time, staleBefore time.Time) (bool, error)
	MarkDone(ctx context.Context, db *gorm.DB, id snowflake.ID, status string, at time.Time) error
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string) error
	ListRetryable(ctx context.Context, db *gorm.DB, maxAttempts int, staleBefore time.Time, limit int) ([]EventRecord, error)
}
