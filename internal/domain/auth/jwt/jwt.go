package jwt

import (
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/model"
	"github.com/golang-jwt/jwt/v5"
	"time"
)

type AccessClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
	Role string `json:"role"`
}

type JWTUtil interface {
	GenerateAccessToken(username, role string) (token string, iat, exp time.Time, err error)
	GenerateRefreshToken() (model.RefreshToken, error)
	ValidateAccessToken(token string) (claims AccessClaims, err error)
}
