package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/blsuntech/internal/payment/domain"
	"go.uber.org/zap"
)

const (
	HeaderStripeSignature = "Stripe-Signature"
	maxWebhookBodyBytes   = 1 << 16
)

// HandlePaymentWebhook acknowledges every verified delivery. Processing
// failures are recorded against the event and replayed later.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	res, err := s.paymentSvc.IngestWebhook(c.Request.Context(), payload, c.GetHeader(HeaderStripeSignature))
	if err != nil {
		if errors.Is(err, paymentdomain.ErrInvalidSignature) {
			s.log.Warn("webhook signature rejected", zap.Error(err))
			c.JSON(http.StatusBadRequest, errorResponse{
				Error: "Webhook Error: invalid signature",
				Type:  typeValidation,
			})
			c.Abort()
			return
		}
		s.log.Error("webhook processing failed",
			zap.String("event_id", res.EventID),
			zap.String("event_type", res.EventType),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
