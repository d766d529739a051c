package jwt

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	customErrors "github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/errors"
	jwt2 "github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/model"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/infra/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"time"
)

const refreshTokenSize = 64

type JwtUtilImpl struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	now        func() time.Time
}

func NewJWTUtil(cfg *config.Config) (*JwtUtilImpl, error) {
	if cfg.TokenSigningKey == "" {
		return nil, customErrors.NewInvalidArgument("empty token signing key")
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, customErrors.NewInvalidArgument("token ttl must be positive")
	}

	return &JwtUtilImpl{
		key:        []byte(cfg.TokenSigningKey),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		issuer:     cfg.Issuer,
		now:        time.Now,
	}, nil
}

// WithClock replaces time.Now for issuance and validation.
func (j *JwtUtilImpl) WithClock(now func() time.Time) *JwtUtilImpl {
	j.now = now
	return j
}

// GenerateAccessToken returns iat and exp exactly as encoded in the token
// (second precision).
func (j *JwtUtilImpl) GenerateAccessToken(username, role string) (token string, iat, exp time.Time, err error) {
	now := j.now()

	claims := jwt2.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.accessTTL)),
			ID:        uuid.NewString(),
		},
		Name: username,
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(j.key)
	if err != nil {
		return "", time.Time{}, time.Time{}, customErrors.WrapInternal(err, "sign access token")
	}

	return signed, claims.IssuedAt.Time, claims.ExpiresAt.Time, nil
}

// GenerateRefreshToken returns an opaque token: 64 random bytes, base64.
func (j *JwtUtilImpl) GenerateRefreshToken() (model.RefreshToken, error) {
	buf := make([]byte, refreshTokenSize)
	if _, err := rand.Read(buf); err != nil {
		return model.RefreshToken{}, customErrors.WrapInternal(err, "read random")
	}

	now := j.now()
	return model.RefreshToken{
		Token:   base64.StdEncoding.EncodeToString(buf),
		Created: now,
		Expires: now.Add(j.refreshTTL),
	}, nil
}

func (j *JwtUtilImpl) ValidateAccessToken(raw string) (jwt2.AccessClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &jwt2.AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
			return nil, customErrors.ErrInvalidToken
		}
		return j.key, nil
	}, jwt.WithTimeFunc(j.now), jwt.WithExpirationRequired())

	if err != nil || !token.Valid {
		return jwt2.AccessClaims{}, customErrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt2.AccessClaims)
	if !ok {
		return jwt2.AccessClaims{}, customErrors.WrapInternal(
			errors.New("claims not AccessClaims"), "ValidateAccessToken",
		)
	}

	if j.issuer != "" && claims.Issuer != j.issuer {
		return jwt2.AccessClaims{}, customErrors.ErrInvalidToken
	}
	if claims.Name == "" {
		return jwt2.AccessClaims{}, customErrors.ErrInvalidToken
	}

	return *claims, nil
}
