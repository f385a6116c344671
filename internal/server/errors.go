package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/smallbiznis/blsuntech/internal/checkout/domain"
	leaddomain "github.com/smallbiznis/blsuntech/internal/lead/domain"
	offeringdomain "github.com/smallbiznis/blsuntech/internal/offering/domain"
	paymentdomain "github.com/smallbiznis/blsuntech/internal/payment/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Message string
	Errors  []ValidationError
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

// errorResponse is the single error body shape of the API.
type errorResponse struct {
	Error  string            `json:"error"`
	Type   string            `json:"type"`
	Errors []ValidationError `json:"errors,omitempty"`
}

const (
	typeValidation   = "validation_error"
	typeUnauthorized = "unauthorized"
	typeNotFound     = "not_found"
	typeConflict     = "conflict"
	typeRateLimited  = "rate_limited"
	typeServer       = "server_error"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, payload)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "Invalid request body.")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Message: message,
		Errors:  []ValidationError{{Field: field, Code: code, Message: message}},
	}
}

// fieldError ties a domain sentinel to the field and message it is reported with.
type fieldError struct {
	err     error
	field   string
	message string
}

var fieldErrors = []fieldError{
	{leaddomain.ErrInvalidName, "name", "Name must be at least 2 characters."},
	{leaddomain.ErrInvalidEmail, "email", "A valid email is required."},
	{leaddomain.ErrInvalidMessage, "message", "Message must be at least 8 characters."},
	{leaddomain.ErrInvalidFlow, "flow", "Unknown flow."},
	{checkoutdomain.ErrInvalidName, "name", "Name is required."},
	{checkoutdomain.ErrInvalidOffering, "offeringId", "Invalid offeringId."},
	{checkoutdomain.ErrAmountTooSmall, "offeringId", "Project amount too small (min usually $0.50)."},
	{checkoutdomain.ErrInvalidSessionID, "id", "Invalid session_id format."},
	{offeringdomain.ErrInvalidID, "offeringId", "offeringId is required."},
	{offeringdomain.ErrNotFound, "offeringId", "Invalid offeringId."},
	{offeringdomain.ErrInactive, "offeringId", "Selected price is inactive."},
}

func mapError(err error) (int, errorResponse) {
	if vErr := asValidationErrors(err); vErr != nil {
		msg := vErr.Message
		if msg == "" {
			msg = "Invalid request."
		}
		return http.StatusBadRequest, errorResponse{Error: msg, Type: typeValidation, Errors: vErr.Errors}
	}

	if details := domainValidationErrors(err); len(details) > 0 {
		return http.StatusBadRequest, errorResponse{
			Error:  details[0].Message,
			Type:   typeValidation,
			Errors: details,
		}
	}

	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, paymentdomain.ErrInvalidSignature),
		errors.Is(err, paymentdomain.ErrInvalidPayload):
		return http.StatusBadRequest, errorResponse{Error: "Invalid request.", Type: typeValidation}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorResponse{Error: "Unauthorized", Type: typeUnauthorized}
	case errors.Is(err, checkoutdomain.ErrSessionNotFound):
		return http.StatusNotFound, errorResponse{Error: "Session not found.", Type: typeNotFound}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "Not found.", Type: typeNotFound}
	case errors.Is(err, checkoutdomain.ErrSessionNotPaid):
		return http.StatusConflict, errorResponse{Error: "Payment not completed for this session.", Type: typeConflict}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorResponse{Error: "Too many requests", Type: typeRateLimited}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "Server error", Type: typeServer}
	}
}

// domainValidationErrors expands err, which may be an errors.Join of several
// sentinels, into one entry per failing field.
func domainValidationErrors(err error) []ValidationError {
	var out []ValidationError
	for _, fe := range fieldErrors {
		if !errors.Is(err, fe.err) {
			continue
		}
		out = append(out, ValidationError{Field: fe.field, Code: fe.err.Error(), Message: fe.message})
	}
	return out
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func classifyErrorForLog(err error) string {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		if errors.Is(err, checkoutdomain.ErrUpstream) || errors.Is(err, offeringdomain.ErrCatalogUnavailable) {
			return "upstream_error"
		}
		return "server_error"
	default:
		return payload.Type
	}
}
