package service_test

import (
	"context"
	"errors"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/adapters/db/memory"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/adapters/transport/http/dto"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/app/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/app/auth/password"
	appsvc "github.com/Miraines/MoonyAndStarry/weather-auth/internal/app/auth/service"
	authErrors "github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/model"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/infra/config"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

/* ──────────────────────────────── stubs ──────────────────────────────── */

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

type errStore struct{ user *model.User }

func (e errStore) Save(context.Context, model.User) error { return errors.New("err") }
func (e errStore) Get(context.Context) (model.User, error) {
	if e.user != nil {
		return *e.user, nil
	}
	return model.User{}, errors.New("err")
}
func (e errStore) SetRefreshToken(context.Context, string, string, model.RefreshToken) error {
	return errors.New("err")
}
func (e errStore) Ping(context.Context) error { return errors.New("err") }

// gateStore holds every Get until n callers have read the slot, so that
// they all act on the same snapshot.
type gateStore struct {
	*memory.UserStore
	arrived sync.WaitGroup
	release chan struct{}
}

func newGateStore(inner *memory.UserStore, n int) *gateStore {
	g := &gateStore{UserStore: inner, release: make(chan struct{})}
	g.arrived.Add(n)
	return g
}

func (g *gateStore) Get(ctx context.Context) (model.User, error) {
	u, err := g.UserStore.Get(ctx)
	g.arrived.Done()
	<-g.release
	return u, err
}

// tickingClock moves forward on every call.
type tickingClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

/* ───────────────────────────── helpers ───────────────────────────── */

func newUtil(t *testing.T, now func() time.Time) *jwt.JwtUtilImpl {
	t.Helper()
	util, err := jwt.NewJWTUtil(&config.Config{
		TokenSigningKey: "test-key",
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	return util.WithClock(now)
}

func newSvc(t *testing.T) (appsvc.Service, *memory.UserStore, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)}
	store := memory.NewUserStore()

	svc := appsvc.New(store, newUtil(t, c.Now), password.HMACSHA512{}, validator.New(), appsvc.WithClock(c.Now))
	return svc, store, c
}

func register(t *testing.T, svc appsvc.Service, user, pass string) {
	t.Helper()
	_, err := svc.Register(context.Background(), dto.RegisterDTO{Username: user, Password: pass})
	require.NoError(t, err)
}

/* ───────────────────────────── tests ───────────────────────────── */

func TestAuthService_RegisterLogin(t *testing.T) {
	svc, store, c := newSvc(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, dto.RegisterDTO{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)
	require.NotEmpty(t, u.PasswordHash)
	require.NotEmpty(t, u.PasswordSalt)

	sess, err := svc.Login(ctx, dto.LoginDTO{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	require.NotEmpty(t, sess.AccessToken)
	require.Equal(t, 30*time.Minute, sess.AccessExpires.Sub(c.t))
	require.Equal(t, 30*time.Minute, sess.AccessTTL)
	require.Equal(t, 7*24*time.Hour, sess.Refresh.Expires.Sub(c.t))

	stored, err := store.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, sess.Refresh.Token, stored.RefreshToken)
	require.Equal(t, model.StateTokenValid, stored.State(c.t))
}

func TestAuthService_RegisterInvalid(t *testing.T) {
	svc, _, _ := newSvc(t)
	_, err := svc.Register(context.Background(), dto.RegisterDTO{})
	require.Error(t, err)
	require.True(t, authErrors.IsInvalidArgument(err))
}

func TestAuthService_RegisterOverwritesSlot(t *testing.T) {
	svc, store, c := newSvc(t)
	ctx := context.Background()

	register(t, svc, "alice", "one")
	_, err := svc.Login(ctx, dto.LoginDTO{Username: "alice", Password: "one"})
	require.NoError(t, err)

	register(t, svc, "bob", "two")
	stored, _ := store.Get(ctx)
	require.Equal(t, model.StateRegistered, stored.State(c.t))

	_, err = svc.Login(ctx, dto.LoginDTO{Username: "alice", Password: "one"})
	require.True(t, authErrors.IsUserNotFound(err))
}

func TestAuthService_LoginUserNotFound(t *testing.T) {
	svc, _, _ := newSvc(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, dto.LoginDTO{Username: "nobody", Password: "p"})
	require.True(t, authErrors.IsUserNotFound(err))

	register(t, svc, "alice", "secret")
	_, err = svc.Login(ctx, dto.LoginDTO{Username: "Alice", Password: "secret"})
	require.True(t, authErrors.IsUserNotFound(err))
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	svc, _, _ := newSvc(t)
	register(t, svc, "alice", "secret")

	_, err := svc.Login(context.Background(), dto.LoginDTO{Username: "alice", Password: "secreT"})
	require.Error(t, err)
	require.True(t, authErrors.IsWrongPassword(err))
}

func TestAuthService_RefreshRotates(t *testing.T) {
	svc, store, c := newSvc(t)
	ctx := context.Background()
	register(t, svc, "alice", "secret")

	first, err := svc.Login(ctx, dto.LoginDTO{Username: "alice", Password: "secret"})
	require.NoError(t, err)

	c.t = c.t.Add(time.Hour)
	second, err := svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: first.Refresh.Token})
	require.NoError(t, err)
	require.NotEqual(t, first.Refresh.Token, second.Refresh.Token)
	require.Equal(t, 7*24*time.Hour, second.Refresh.Expires.Sub(c.t))

	stored, _ := store.Get(ctx)
	require.Equal(t, second.Refresh.Token, stored.RefreshToken)

	// старый токен после ротации больше не годится
	_, err = svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: first.Refresh.Token})
	require.True(t, authErrors.IsInvalidRefreshToken(err))
}

func TestAuthService_RefreshMismatch(t *testing.T) {
	svc, _, _ := newSvc(t)
	ctx := context.Background()
	register(t, svc, "alice", "secret")

	sess, err := svc.Login(ctx, dto.LoginDTO{Username: "alice", Password: "secret"})
	require.NoError(t, err)

	tampered := "A" + sess.Refresh.Token[1:]
	if tampered == sess.Refresh.Token {
		tampered = "B" + sess.Refresh.Token[1:]
	}
	for _, tok := range []string{"", "bad", tampered, sess.Refresh.Token + "x"} {
		_, err := svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: tok})
		require.True(t, authErrors.IsInvalidRefreshToken(err), tok)
	}
}

func TestAuthService_RefreshBeforeLogin(t *testing.T) {
	svc, _, _ := newSvc(t)
	ctx := context.Background()

	_, err := svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: "anything"})
	require.True(t, authErrors.IsInvalidRefreshToken(err))

	register(t, svc, "alice", "secret")
	_, err = svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: ""})
	require.True(t, authErrors.IsInvalidRefreshToken(err))
}

func TestAuthService_RefreshExpired(t *testing.T) {
	svc, store, c := newSvc(t)
	ctx := context.Background()
	register(t, svc, "alice", "secret")

	sess, err := svc.Login(ctx, dto.LoginDTO{Username: "alice", Password: "secret"})
	require.NoError(t, err)

	c.t = c.t.Add(7 * 24 * time.Hour)
	_, err = svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: sess.Refresh.Token})
	require.NoError(t, err, "token is still valid at exactly its expiry instant")

	stored, _ := store.Get(ctx)
	c.t = stored.TokenExpires.Add(time.Second)
	_, err = svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: stored.RefreshToken})
	require.True(t, authErrors.IsRefreshTokenExpired(err))
}

func TestAuthService_Validate(t *testing.T) {
	svc, _, c := newSvc(t)
	ctx := context.Background()
	register(t, svc, "alice", "secret")

	sess, err := svc.Login(ctx, dto.LoginDTO{Username: "alice", Password: "secret"})
	require.NoError(t, err)

	claims, err := svc.Validate(ctx, dto.ValidateDTO{AccessToken: sess.AccessToken})
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Name)
	require.Equal(t, model.AdminRole, claims.Role)

	c.t = c.t.Add(31 * time.Minute)
	_, err = svc.Validate(ctx, dto.ValidateDTO{AccessToken: sess.AccessToken})
	require.True(t, authErrors.IsInvalidToken(err))
}

func TestAuthService_ValidateInvalidToken(t *testing.T) {
	svc, _, _ := newSvc(t)

	_, err := svc.Validate(context.Background(), dto.ValidateDTO{AccessToken: "bad"})
	require.True(t, authErrors.IsInvalidToken(err))

	_, err = svc.Validate(context.Background(), dto.ValidateDTO{})
	require.True(t, authErrors.IsInvalidArgument(err))
}

func TestAuthService_InternalErrors(t *testing.T) {
	util, _ := jwt.NewJWTUtil(&config.Config{
		TokenSigningKey: "k",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})

	svc := appsvc.New(errStore{}, util, password.HMACSHA512{}, validator.New())
	_, err := svc.Register(context.Background(), dto.RegisterDTO{Username: "a", Password: "b"})
	require.True(t, authErrors.IsInternal(err))

	_, err = svc.Login(context.Background(), dto.LoginDTO{Username: "a", Password: "b"})
	require.True(t, authErrors.IsInternal(err))

	// пользователь читается, но запись refresh-токена падает
	h := password.HMACSHA512{}
	salt, _ := h.NewSalt()
	user := model.User{Username: "a", PasswordHash: h.Hash("b", salt), PasswordSalt: salt}
	svc = appsvc.New(errStore{user: &user}, util, h, validator.New())
	_, err = svc.Login(context.Background(), dto.LoginDTO{Username: "a", Password: "b"})
	require.True(t, authErrors.IsInternal(err))
}

func TestAuthService_ConcurrentRefreshSingleUse(t *testing.T) {
	svc, store, c := newSvc(t)
	ctx := context.Background()
	register(t, svc, "alice", "secret")

	sess, err := svc.Login(ctx, dto.LoginDTO{Username: "alice", Password: "secret"})
	require.NoError(t, err)

	const callers = 2
	gate := newGateStore(store, callers)
	racing := appsvc.New(gate, newUtil(t, c.Now), password.HMACSHA512{}, validator.New(), appsvc.WithClock(c.Now))

	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := racing.Refresh(ctx, dto.RefreshDTO{RefreshToken: sess.Refresh.Token})
			errs <- err
		}()
	}
	gate.arrived.Wait()
	close(gate.release)

	ok := 0
	for i := 0; i < callers; i++ {
		err := <-errs
		if err == nil {
			ok++
			continue
		}
		require.True(t, authErrors.IsInvalidRefreshToken(err), err)
	}
	require.Equal(t, 1, ok, "one refresh token must yield exactly one session")
}

func TestAuthService_AccessTTLAcrossSecondBoundary(t *testing.T) {
	c := &tickingClock{t: time.Date(2025, 5, 1, 8, 0, 0, 400_000_000, time.UTC), step: 300 * time.Millisecond}
	svc := appsvc.New(memory.NewUserStore(), newUtil(t, c.Now), password.HMACSHA512{}, validator.New(), appsvc.WithClock(c.Now))
	register(t, svc, "alice", "secret")

	for i := 0; i < 5; i++ {
		sess, err := svc.Login(context.Background(), dto.LoginDTO{Username: "alice", Password: "secret"})
		require.NoError(t, err)
		require.Equal(t, 30*time.Minute, sess.AccessTTL)
	}
}
