package stripe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/smallbiznis/blsuntech/internal/config"
	stripesdk "github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"go.uber.org/zap"
)

const maxCatalogPrices = 100

var (
	ErrNotConfigured = errors.New("stripe_not_configured")
	ErrTimeout       = errors.New("stripe_timeout")
)

// API is the slice of the Stripe surface the intake funnel depends on.
type API interface {
	ListActivePrices(ctx context.Context) ([]*stripesdk.Price, error)
	GetPrice(ctx context.Context, id string) (*stripesdk.Price, error)
	CreateCheckoutSession(ctx context.Context, params *stripesdk.CheckoutSessionParams) (*stripesdk.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*stripesdk.CheckoutSession, error)
}

// Client builds the underlying stripe-go client on first use so the process
// can start without credentials and fail per request instead.
type Client struct {
	secretKey string
	timeout   time.Duration
	log       *zap.Logger
	apiURL    string

	mu  sync.Mutex
	api *client.API
}

func New(cfg config.Config, log *zap.Logger) *Client {
	timeout := cfg.Stripe.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		secretKey: cfg.Stripe.SecretKey,
		timeout:   timeout,
		log:       log.Named("stripe"),
	}
}

func (c *Client) sdk() (*client.API, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api != nil {
		return c.api, nil
	}
	if c.secretKey == "" {
		return nil, ErrNotConfigured
	}
	// Retries are disabled so one call never outlives the configured timeout.
	backendCfg := &stripesdk.BackendConfig{
		HTTPClient:        &http.Client{Timeout: c.timeout},
		MaxNetworkRetries: stripesdk.Int64(0),
		LeveledLogger:     c.log.Sugar(),
	}
	if c.apiURL != "" {
		backendCfg.URL = stripesdk.String(c.apiURL)
	}
	c.api = client.New(c.secretKey, stripesdk.NewBackendsWithConfig(backendCfg))
	return c.api, nil
}

func (c *Client) ListActivePrices(ctx context.Context) ([]*stripesdk.Price, error) {
	sc, err := c.sdk()
	if err != nil {
		return nil, err
	}

	params := &stripesdk.PriceListParams{Active: stripesdk.Bool(true)}
	params.Context = ctx
	params.Limit = stripesdk.Int64(maxCatalogPrices)
	params.AddExpand("data.product")

	prices := make([]*stripesdk.Price, 0, maxCatalogPrices)
	iter := sc.Prices.List(params)
	for iter.Next() {
		prices = append(prices, iter.Price())
		if len(prices) >= maxCatalogPrices {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, classify(err)
	}
	return prices, nil
}

func (c *Client) GetPrice(ctx context.Context, id string) (*stripesdk.Price, error) {
	sc, err := c.sdk()
	if err != nil {
		return nil, err
	}
	params := &stripesdk.PriceParams{}
	params.Context = ctx
	params.AddExpand("product")
	price, err := sc.Prices.Get(id, params)
	if err != nil {
		return nil, classify(err)
	}
	return price, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, params *stripesdk.CheckoutSessionParams) (*stripesdk.CheckoutSession, error) {
	sc, err := c.sdk()
	if err != nil {
		return nil, err
	}
	params.Context = ctx
	session, err := sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, classify(err)
	}
	return session, nil
}

func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*stripesdk.CheckoutSession, error) {
	sc, err := c.sdk()
	if err != nil {
		return nil, err
	}
	params := &stripesdk.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")
	session, err := sc.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, classify(err)
	}
	return session, nil
}

// classify tags transport timeouts with ErrTimeout while keeping the cause.
func classify(err error) error {
	if IsTimeout(err) {
		return errors.Join(ErrTimeout, err)
	}
	return err
}

func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsResourceMissing reports a Stripe 404 or resource_missing error.
func IsResourceMissing(err error) bool {
	var stripeErr *stripesdk.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.Code == stripesdk.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == http.StatusNotFound
}

// IsInvalidRequest reports a Stripe invalid_request_error other than a missing resource.
func IsInvalidRequest(err error) bool {
	var stripeErr *stripesdk.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.Type == stripesdk.ErrorTypeInvalidRequest && !IsResourceMissing(err)
}
