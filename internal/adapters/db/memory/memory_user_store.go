package memory

import (
	"context"
	"crypto/subtle"
	customErrors "github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/model"
	"sync"
)

// UserStore keeps the single user in process memory.
type UserStore struct {
	mu   sync.RWMutex
	user *model.User
}

func NewUserStore() *UserStore {
	return &UserStore{}
}

func (s *UserStore) Save(_ context.Context, u model.User) error {
	c := u.Clone()
	s.mu.Lock()
	s.user = &c
	s.mu.Unlock()
	return nil
}

func (s *UserStore) Get(_ context.Context) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return model.User{}, customErrors.ErrNotFound
	}
	return s.user.Clone(), nil
}

func (s *UserStore) SetRefreshToken(_ context.Context, username, expected string, rt model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || s.user.Username != username {
		return customErrors.ErrNotFound
	}
	if expected != "" && subtle.ConstantTimeCompare([]byte(s.user.RefreshToken), []byte(expected)) != 1 {
		return customErrors.ErrNotFound
	}
	s.user.ApplyRefreshToken(rt)
	return nil
}

func (s *UserStore) Ping(context.Context) error { return nil }
