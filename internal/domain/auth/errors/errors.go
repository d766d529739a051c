package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInternal            = errors.New("internal error")
	ErrNotFound            = errors.New("not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrWrongPassword       = errors.New("wrong password")
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("token expired")
)

func NewInvalidArgument(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
}

func WrapInternal(err error, context string) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, context, err)
}

func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}

// IsNotFound reports an empty user slot (store level).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsWrongPassword(err error) bool {
	return errors.Is(err, ErrWrongPassword)
}

func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrInvalidToken)
}

func IsInvalidRefreshToken(err error) bool {
	return errors.Is(err, ErrInvalidRefreshToken)
}

func IsRefreshTokenExpired(err error) bool {
	return errors.Is(err, ErrRefreshTokenExpired)
}
