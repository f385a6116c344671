package domain

import (
	"context"
	"errors"
	"fmt"
)

type Service interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (CreateSessionResult, error)
	GetSession(ctx context.Context, id string) (Session, error)
	Receipt(ctx context.Context, id string) ([]byte, error)
}

var (
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidOffering  = errors.New("invalid_offering")
	ErrAmountTooSmall   = errors.New("amount_below_minimum")
	ErrInvalidSessionID = errors.New("invalid_session_id")
	ErrSessionNotFound  = errors.New("session_not_found")
	ErrSessionNotPaid   = errors.New("session_not_paid")
	ErrUpstream         = errors.New("upstream_error")
	ErrUpstreamTimeout  = fmt.Errorf("upstream_timeout: %w", ErrUpstream)
)
