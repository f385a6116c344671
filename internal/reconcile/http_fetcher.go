package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	checkoutdomain "github.com/smallbiznis/blsuntech/internal/checkout/domain"
	offeringdomain "github.com/smallbiznis/blsuntech/internal/offering/domain"
)

var ErrEmptyBaseURL = errors.New("empty_base_url")

// StatusError is a non-2xx answer from the API. Message carries the API's
// error text when it sent one.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}

// HTTPFetcher reads sessions and offerings from the intake API.
type HTTPFetcher struct {
	base   string
	client *http.Client
}

func NewHTTPFetcher(baseURL string, client *http.Client) (*HTTPFetcher, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, ErrEmptyBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPFetcher{base: base, client: client}, nil
}

func (f *HTTPFetcher) FetchSession(ctx context.Context, id string) (checkoutdomain.Session, error) {
	var session checkoutdomain.Session
	err := f.getJSON(ctx, "/checkout-sessions/"+url.PathEscape(id), &session)
	return session, err
}

// OfferingLabel looks the offering up in the public catalog.
func (f *HTTPFetcher) OfferingLabel(ctx context.Context, offeringID string) (string, error) {
	var body struct {
		Offerings []offeringdomain.Offering `json:"offerings"`
	}
	if err := f.getJSON(ctx, "/offerings", &body); err != nil {
		return "", err
	}
	for _, item := range body.Offerings {
		if item.ID == offeringID {
			return item.Label, nil
		}
	}
	return "", nil
}

func (f *HTTPFetcher) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		return &StatusError{Code: resp.StatusCode, Message: apiErr.Error}
	}
	return json.Unmarshal(body, out)
}
