package http

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"custodian/internal/domain"

	"github.com/gin-gonic/gin"
)

// enforceRateLimit applies the per-client window for the named route.
// Limiter errors fail open; a rejected request gets a 429 with the
// standard RateLimit headers.
func (s *Server) enforceRateLimit(c *gin.Context, route string) bool {
	if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
		return true
	}
	key := fmt.Sprintf("client:%s:route:%s", c.ClientIP(), route)
	decision, err := s.rateLimiter.Allow(c.Request.Context(), key, s.rateLimitRequests, s.rateLimitWindow)
	if err != nil {
		log.Printf("rate limiter error for %s: %v", key, err)
		return true
	}
	writeRateLimitHeaders(c, decision)
	if !decision.Allowed {
		writeErrorCode(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
		return false
	}
	return true
}

func writeRateLimitHeaders(c *gin.Context, d domain.RateLimitDecision) {
	c.Header("RateLimit-Limit", strconv.Itoa(d.Limit))
	c.Header("RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.ResetAt.IsZero() {
		seconds := int(time.Until(d.ResetAt).Seconds())
		if seconds < 0 {
			seconds = 0
		}
		c.Header("RateLimit-Reset", strconv.Itoa(seconds))
	}
}
