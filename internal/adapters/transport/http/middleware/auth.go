package middleware

import (
	"context"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/adapters/transport/http/dto"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/jwt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ctxUsername = "auth.username"
	ctxRole     = "auth.role"
)

type TokenValidator interface {
	Validate(context.Context, dto.ValidateDTO) (jwt.AccessClaims, error)
}

// RequireAuth accepts only requests with a valid "Authorization: Bearer <jwt>"
// header and stores the token's name and role claims in the gin context.
func RequireAuth(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := v.Validate(c.Request.Context(), dto.ValidateDTO{AccessToken: raw})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ctxUsername, claims.Name)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

func Username(c *gin.Context) string { return c.GetString(ctxUsername) }

func Role(c *gin.Context) string { return c.GetString(ctxRole) }

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
