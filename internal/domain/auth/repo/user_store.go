package repo

import (
	"context"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/model"
)

// UserStore holds a single user slot. Save replaces whatever is stored,
// Get returns errors.ErrNotFound while the slot is empty.
type UserStore interface {
	Save(ctx context.Context, u model.User) error

	Get(ctx context.Context) (model.User, error)

	// SetRefreshToken replaces the refresh token of the stored user. The slot
	// must still hold username and, when expected is non-empty, a refresh
	// token equal to expected; otherwise errors.ErrNotFound and nothing changes.
	SetRefreshToken(ctx context.Context, username, expected string, rt model.RefreshToken) error

	Ping(ctx context.Context) error
}
