package service

import (
	"context"
	"crypto/subtle"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/adapters/transport/http/dto"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/app/auth/password"
	customErrors "github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/model"
	repo "github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/repo"
	"github.com/go-playground/validator/v10"
	"time"
)

type authService struct {
	store  repo.UserStore
	jwt    jwt.JWTUtil
	hasher password.Hasher
	v      *validator.Validate
	now    func() time.Time
}

type Service interface {
	Register(context.Context, dto.RegisterDTO) (model.User, error)
	Login(context.Context, dto.LoginDTO) (model.Session, error)
	Refresh(context.Context, dto.RefreshDTO) (model.Session, error)
	Validate(context.Context, dto.ValidateDTO) (jwt.AccessClaims, error)
}

type Option func(*authService)

// WithClock overrides the clock used for refresh-token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(a *authService) { a.now = now }
}

func New(
	store repo.UserStore,
	jm jwt.JWTUtil,
	hasher password.Hasher,
	v *validator.Validate,
	opts ...Option,
) Service {
	a := &authService{
		store: store, jwt: jm, hasher: hasher, v: v, now: time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *authService) Register(ctx context.Context, in dto.RegisterDTO) (model.User, error) {
	if err := a.v.Struct(in); err != nil {
		return model.User{}, customErrors.NewInvalidArgument(err.Error())
	}

	salt, err := a.hasher.NewSalt()
	if err != nil {
		return model.User{}, customErrors.WrapInternal(err, "Register")
	}

	user := model.User{
		Username:     in.Username,
		PasswordHash: a.hasher.Hash(in.Password, salt),
		PasswordSalt: salt,
	}
	// слот один: новая регистрация затирает прежнего пользователя
	if err := a.store.Save(ctx, user); err != nil {
		return model.User{}, customErrors.WrapInternal(err, "Register")
	}

	return user, nil
}

func (a *authService) Login(ctx context.Context, in dto.LoginDTO) (model.Session, error) {
	if err := a.v.Struct(in); err != nil {
		return model.Session{}, customErrors.NewInvalidArgument(err.Error())
	}

	user, err := a.store.Get(ctx)
	switch {
	case customErrors.IsNotFound(err):
		return model.Session{}, customErrors.ErrUserNotFound
	case err != nil:
		return model.Session{}, customErrors.WrapInternal(err, "Login")
	}

	if user.Username != in.Username {
		return model.Session{}, customErrors.ErrUserNotFound
	}
	if !password.Verify(a.hasher, in.Password, user.PasswordHash, user.PasswordSalt) {
		return model.Session{}, customErrors.ErrWrongPassword
	}

	sess, err := a.issueSession(ctx, user.Username, "")
	if customErrors.IsNotFound(err) {
		return model.Session{}, customErrors.ErrUserNotFound
	}
	return sess, err
}

func (a *authService) Refresh(ctx context.Context, in dto.RefreshDTO) (model.Session, error) {
	if in.RefreshToken == "" {
		return model.Session{}, customErrors.ErrInvalidRefreshToken
	}

	user, err := a.store.Get(ctx)
	switch {
	case customErrors.IsNotFound(err):
		return model.Session{}, customErrors.ErrInvalidRefreshToken
	case err != nil:
		return model.Session{}, customErrors.WrapInternal(err, "Refresh")
	}

	if user.RefreshToken == "" ||
		subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(in.RefreshToken)) != 1 {
		return model.Session{}, customErrors.ErrInvalidRefreshToken
	}
	if user.State(a.now()) == model.StateTokenExpired {
		return model.Session{}, customErrors.ErrRefreshTokenExpired
	}

	// токен одноразовый: стор меняет его только если там всё ещё старый
	sess, err := a.issueSession(ctx, user.Username, in.RefreshToken)
	if customErrors.IsNotFound(err) {
		return model.Session{}, customErrors.ErrInvalidRefreshToken
	}
	return sess, err
}

func (a *authService) Validate(_ context.Context, in dto.ValidateDTO) (jwt.AccessClaims, error) {
	if err := a.v.Struct(in); err != nil {
		return jwt.AccessClaims{}, customErrors.NewInvalidArgument(err.Error())
	}

	claims, err := a.jwt.ValidateAccessToken(in.AccessToken)
	if err != nil {
		return jwt.AccessClaims{}, customErrors.ErrInvalidToken
	}
	return claims, nil
}

// issueSession signs a new access token and rotates the stored refresh token.
// A non-empty expected makes the rotation a compare-and-swap against it.
// A store-level ErrNotFound is passed through for the caller to map.
func (a *authService) issueSession(ctx context.Context, username, expected string) (model.Session, error) {
	at, atIat, atExp, err := a.jwt.GenerateAccessToken(username, model.AdminRole)
	if err != nil {
		return model.Session{}, customErrors.WrapInternal(err, "GenerateAccessToken")
	}
	rt, err := a.jwt.GenerateRefreshToken()
	if err != nil {
		return model.Session{}, customErrors.WrapInternal(err, "GenerateRefreshToken")
	}

	if err := a.store.SetRefreshToken(ctx, username, expected, rt); err != nil {
		if customErrors.IsNotFound(err) {
			return model.Session{}, err
		}
		return model.Session{}, customErrors.WrapInternal(err, "StoreRefresh")
	}

	return model.Session{
		Username:      username,
		AccessToken:   at,
		AccessExpires: atExp,
		AccessTTL:     atExp.Sub(atIat),
		Refresh:       rt,
	}, nil
}
