package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	leaddomain "github.com/smallbiznis/blsuntech/internal/lead/domain"
)

type submitLeadRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Company    string `json:"company"`
	Service    string `json:"service"`
	Budget     string `json:"budget"`
	Timeline   string `json:"timeline"`
	Message    string `json:"message"`
	OfferingID string `json:"offeringId"`
	Flow       string `json:"flow"`
	Botcheck   string `json:"botcheck"`
}

func (s *Server) SubmitLead(c *gin.Context) {
	var req submitLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	res, err := s.leadSvc.Submit(c.Request.Context(), leaddomain.SubmitRequest{
		Name:       req.Name,
		Email:      req.Email,
		Company:    req.Company,
		Service:    req.Service,
		Budget:     req.Budget,
		Timeline:   req.Timeline,
		Message:    req.Message,
		OfferingID: req.OfferingID,
		Flow:       req.Flow,
		Botcheck:   req.Botcheck,
		UserAgent:  c.Request.UserAgent(),
		IPAddress:  c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// Honeypot hits carry no id and get the bare acknowledgement.
	if res.ID == "" {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) ListLeads(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	res, err := s.leadSvc.ListLeads(c.Request.Context(), leaddomain.ListRequest{Limit: limit})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if res.Items == nil {
		res.Items = []leaddomain.LeadRecord{}
	}
	c.JSON(http.StatusOK, res)
}
