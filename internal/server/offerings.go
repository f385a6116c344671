package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	offeringdomain "github.com/smallbiznis/blsuntech/internal/offering/domain"
)

func (s *Server) ListOfferings(c *gin.Context) {
	items, err := s.offeringSvc.ListOfferings(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if items == nil {
		items = []offeringdomain.Offering{}
	}
	c.JSON(http.StatusOK, gin.H{"offerings": items})
}
