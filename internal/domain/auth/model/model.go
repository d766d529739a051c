package model

import (
	"time"
)

// AdminRole is the fixed role claim put into every access token.
const AdminRole = "Admin"

// User is the only account the service knows about. Register overwrites it,
// Login and Refresh rotate its refresh token.
type User struct {
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"passwordHash"`
	PasswordSalt []byte    `json:"passwordSalt"`
	RefreshToken string    `json:"refreshToken"`
	TokenCreated time.Time `json:"tokenCreated"`
	TokenExpires time.Time `json:"tokenExpires"`
}

type RefreshToken struct {
	Token   string
	Created time.Time
	Expires time.Time
}

// Session is what login and refresh hand back to the transport layer.
type Session struct {
	Username      string
	AccessToken   string
	AccessExpires time.Time
	AccessTTL     time.Duration
	Refresh       RefreshToken
}

func (u *User) ApplyRefreshToken(rt RefreshToken) {
	u.RefreshToken = rt.Token
	u.TokenCreated = rt.Created
	u.TokenExpires = rt.Expires
}

// Clone returns a deep copy so that callers never share the byte slices.
func (u User) Clone() User {
	c := u
	c.PasswordHash = append([]byte(nil), u.PasswordHash...)
	c.PasswordSalt = append([]byte(nil), u.PasswordSalt...)
	return c
}

type State int

const (
	StateUnregistered State = iota
	StateRegistered
	StateTokenValid
	StateTokenExpired
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateTokenValid:
		return "token_valid"
	case StateTokenExpired:
		return "token_expired"
	default:
		return "unknown"
	}
}

// LoggedIn is true once a refresh token has been issued, expired or not.
func (s State) LoggedIn() bool {
	return s == StateTokenValid || s == StateTokenExpired
}

func (u User) State(now time.Time) State {
	switch {
	case u.Username == "":
		return StateUnregistered
	case u.RefreshToken == "":
		return StateRegistered
	case u.TokenExpires.Before(now):
		return StateTokenExpired
	default:
		return StateTokenValid
	}
}
