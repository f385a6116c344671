package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/blsuntech/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	HeaderAdminToken = "X-Admin-Token"
	bearerPrefix     = "bearer "
)

// AdminAuthRequired accepts either "Authorization: Bearer <token>" or
// X-Admin-Token.
func (s *Server) AdminAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := adminTokenFromRequest(c)
		if token == "" || !s.adminTokens.Verify(token) {
			logger.FromContext(c.Request.Context()).Warn("admin request rejected",
				zap.String("client_ip", c.ClientIP()),
				zap.Bool("token_present", token != ""),
			)
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func adminTokenFromRequest(c *gin.Context) string {
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(auth) > len(bearerPrefix) && strings.EqualFold(auth[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(auth[len(bearerPrefix):])
	}
	return strings.TrimSpace(c.GetHeader(HeaderAdminToken))
}

// RateLimit throttles the route per client IP.
func (s *Server) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)
		res := s.limiter.Allow(ctx, endpoint, c.ClientIP())
		if res.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
		}
		if res.Allowed {
			c.Next()
			return
		}

		logger.FromContext(ctx).Warn("rate limit exceeded",
			zap.String("endpoint", endpoint),
			zap.String("client_ip", c.ClientIP()),
		)
		s.obsMetrics.RecordRateLimitDenied(ctx, endpoint)

		retryAfter := int(math.Ceil(res.RetryAfter.Seconds()))
		c.Header("Retry-After", strconv.Itoa(max(retryAfter, 1)))
		AbortWithError(c, ErrRateLimited)
	}
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
