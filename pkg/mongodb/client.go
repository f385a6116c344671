package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smallbiznis/blsuntech/internal/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrNotConfigured = errors.New("mongodb_not_configured")

var Module = fx.Module("mongodb",
	fx.Provide(New),
	fx.Invoke(registerClose),
)

// Client owns one lazily connected mongo pool. The first caller of Database
// connects; later callers reuse the pool. A failed connect is retried on the
// next call.
type Client struct {
	uri                    string
	database               string
	serverSelectionTimeout time.Duration
	log                    *zap.Logger

	mu     sync.Mutex
	client *mongo.Client
}

func New(cfg config.Config, log *zap.Logger) *Client {
	timeout := cfg.Mongo.ServerSelectionTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		uri:                    cfg.Mongo.URI,
		database:               cfg.Mongo.Database,
		serverSelectionTimeout: timeout,
		log:                    log.Named("mongodb"),
	}
}

func (c *Client) Database(ctx context.Context) (*mongo.Database, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client.Database(c.database), nil
	}
	if c.uri == "" {
		return nil, ErrNotConfigured
	}

	opts := options.Client().
		ApplyURI(c.uri).
		SetServerSelectionTimeout(c.serverSelectionTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	c.client = client
	c.log.Info("mongodb client created", zap.String("database", c.database))
	return client.Database(c.database), nil
}

func (c *Client) Collection(ctx context.Context, name string) (*mongo.Collection, error) {
	db, err := c.Database(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}

// Close disconnects the pool if one was ever opened.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect(ctx)
	c.client = nil
	return err
}

func registerClose(lc fx.Lifecycle, c *Client) {
	lc.Append(fx.Hook{
		OnStop: c.Close,
	})
}
