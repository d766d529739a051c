package redis

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	customErrors "github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/model"
	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 5

// RedisUserStore keeps the user slot as one JSON value under a fixed key.
type RedisUserStore struct {
	client *redis.Client
	key    string
}

func NewRedisUserStore(client *redis.Client, key string) *RedisUserStore {
	return &RedisUserStore{
		client: client,
		key:    key,
	}
}

func (r *RedisUserStore) Save(ctx context.Context, u model.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return customErrors.WrapInternal(err, "marshal user")
	}
	// без TTL: пользователь живёт до следующей регистрации
	return r.client.Set(ctx, r.key, data, 0).Err()
}

func (r *RedisUserStore) Get(ctx context.Context) (model.User, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return model.User{}, customErrors.ErrNotFound
	case err != nil:
		return model.User{}, err
	}
	return decodeUser(raw)
}

// SetRefreshToken does an optimistic WATCH/MULTI compare-and-swap: a
// concurrent Register or rotation of the same token makes it fail.
func (r *RedisUserStore) SetRefreshToken(ctx context.Context, username, expected string, rt model.RefreshToken) error {
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, r.key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			return customErrors.ErrNotFound
		case err != nil:
			return err
		}

		u, err := decodeUser(raw)
		if err != nil {
			return err
		}
		if u.Username != username {
			return customErrors.ErrNotFound
		}
		if expected != "" && subtle.ConstantTimeCompare([]byte(u.RefreshToken), []byte(expected)) != 1 {
			return customErrors.ErrNotFound
		}
		u.ApplyRefreshToken(rt)

		data, err := json.Marshal(u)
		if err != nil {
			return customErrors.WrapInternal(err, "marshal user")
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, r.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return customErrors.WrapInternal(redis.TxFailedErr, "SetRefreshToken")
}

func (r *RedisUserStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func decodeUser(raw []byte) (model.User, error) {
	var u model.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return model.User{}, customErrors.WrapInternal(err, "unmarshal user")
	}
	return u, nil
}
