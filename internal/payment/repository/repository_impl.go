package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/blsuntech/internal/payment/domain"
	"github.com/smallbiznis/blsuntech/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxErrorLength = 1024

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// InsertEvent reports false when the provider event is already recorded.
func (r *repo) InsertEvent(ctx context.Context, conn *gorm.DB, event *domain.EventRecord) (bool, error) {
	res := conn.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_event_id"}},
			DoNothing: true,
		}).
		Create(event)
	if res.Error != nil {
		// Dialects without ON CONFLICT support still surface the unique index.
		if db.IsDuplicateKeyErr(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*domain.EventRecord, error) {
	var item domain.EventRecord
	err := db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		Take(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repo) Claim(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time, staleBefore time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.EventRecord{}).
		Where("id = ?", id).
		Where("(status IN ? OR (status = ? AND claimed_at < ?))",
			[]string{domain.StatusReceived, domain.StatusFailed},
			domain.StatusProcessing, staleBefore,
		).
		Updates(map[string]any{
			"status":     domain.StatusProcessing,
			"claimed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkDone(ctx context.Context, db *gorm.DB, id snowflake.ID, status string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.EventRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       status,
			"processed_at": at,
			"last_error":   "",
		}).Error
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string) error {
	if len(reason) > maxErrorLength {
		reason = reason[:maxErrorLength]
	}
	return db.WithContext(ctx).
		Model(&domain.EventRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     domain.StatusFailed,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
		}).Error
}

// ListRetryable returns failed events under the attempt budget and events whose
// processing claim went stale, oldest first.
func (r *repo) ListRetryable(ctx context.Context, db *gorm.DB, maxAttempts int, staleBefore time.Time, limit int) ([]domain.EventRecord, error) {
	var items []domain.EventRecord
	err := db.WithContext(ctx).
		Where("(status = ? AND attempts < ?) OR (status = ? AND claimed_at < ?)",
			domain.StatusFailed, maxAttempts,
			domain.StatusProcessing, staleBefore,
		).
		Order("received_at ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
