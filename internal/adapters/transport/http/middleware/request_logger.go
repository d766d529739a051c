package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger пишет строку на каждый запрос. Заголовки с токенами и
// куками (там лежит refresh-токен) в лог не попадают.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ce := log.Check(zap.DebugLevel, "↘︎ incoming request"); ce != nil {
			ce.Write(
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("origin", c.GetHeader("Origin")),
				zap.Any("hdr", scrubHeaders(c.Request.Header)),
			)
		}

		ts := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(ts)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.Error("↗︎ completed", fields...)
		case c.IsAborted() || status >= http.StatusBadRequest:
			log.Warn("↗︎ completed", fields...)
		default:
			log.Info("↗︎ completed", fields...)
		}
	}
}

func scrubHeaders(h http.Header) map[string][]string {
	out := make(map[string][]string, len(h))
	for k, v := range h {
		lk := strings.ToLower(k)
		if strings.Contains(lk, "authorization") || strings.Contains(lk, "cookie") {
			out[k] = []string{"[redacted]"}
			continue
		}
		out[k] = v
	}
	return out
}
