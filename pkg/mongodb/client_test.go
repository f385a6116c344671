package mongodb

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/blsuntech/internal/config"
	"go.uber.org/zap"
)

func TestDatabaseWithoutURI(t *testing.T) {
	c := New(config.Config{Mongo: config.MongoConfig{Database: "blsuntech"}}, zap.NewNop())

	_, err := c.Database(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("close without connect should be a no-op, got %v", err)
	}
}

func TestDatabaseConnectsLazilyAndReuses(t *testing.T) {
	c := New(config.Config{Mongo: config.MongoConfig{
		URI:      "mongodb://127.0.0.1:1",
		Database: "blsuntech",
	}}, zap.NewNop())

	// The v1 driver dials in the background, so Connect succeeds without a server.
	first, err := c.Database(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := c.Database(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Client() != second.Client() {
		t.Fatalf("expected the pool to be reused")
	}
	if first.Name() != "blsuntech" {
		t.Fatalf("unexpected database %q", first.Name())
	}
	_ = c.Close(context.Background())
}
