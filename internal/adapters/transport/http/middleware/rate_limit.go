package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// NewHTTPRateLimitPerIP ограничивает RPS для Gin-ручек. Лимитеры живут в
// LRU-кэше, запись неактивного IP удаляется через entryTTL.
func NewHTTPRateLimitPerIP(
	limit, burst int,
	cacheSize int,
	entryTTL time.Duration,
) gin.HandlerFunc {

	visitors := lru.NewLRU[string, *rate.Limiter](cacheSize, nil, entryTTL)

	return func(c *gin.Context) {
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			host = c.Request.RemoteAddr
		}

		lim, found := visitors.Get(host)
		if !found {
			lim = rate.NewLimiter(rate.Limit(limit), burst)
		}
		// Add продлевает TTL активного IP
		visitors.Add(host, lim)

		if !lim.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
