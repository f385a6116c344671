package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/smallbiznis/blsuntech/internal/checkout/domain"
	"go.uber.org/zap"
)

type createCheckoutSessionRequest struct {
	Name       string `json:"name"`
	OfferingID string `json:"offeringId"`
}

func (s *Server) CreateCheckoutSession(c *gin.Context) {
	var req createCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	res, err := s.checkoutSvc.CreateSession(c.Request.Context(), checkoutdomain.CreateSessionRequest{
		CustomerName: req.Name,
		OfferingID:   req.OfferingID,
	})
	if err != nil {
		s.logUpstream(c, "create_checkout_session", err, zap.String("offering_id", strings.TrimSpace(req.OfferingID)))
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (s *Server) GetCheckoutSession(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	session, err := s.checkoutSvc.GetSession(c.Request.Context(), id)
	if err != nil {
		s.logUpstream(c, "get_checkout_session", err, zap.String("session_id", id))
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (s *Server) GetCheckoutReceipt(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	pdfBytes, err := s.checkoutSvc.Receipt(c.Request.Context(), id)
	if err != nil {
		s.logUpstream(c, "checkout_receipt", err, zap.String("session_id", id))
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="receipt-`+id+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}

func (s *Server) logUpstream(c *gin.Context, op string, err error, fields ...zap.Field) {
	if !errors.Is(err, checkoutdomain.ErrUpstream) {
		return
	}
	fields = append(fields, zap.String("op", op), zap.Error(err))
	s.log.Error("checkout upstream failure", fields...)
}
