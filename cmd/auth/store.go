package main

import (
	"context"
	"fmt"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/adapters/db/memory"
	myPostgresStore "github.com/Miraines/MoonyAndStarry/weather-auth/internal/adapters/db/postgres"
	myRedisStore "github.com/Miraines/MoonyAndStarry/weather-auth/internal/adapters/db/redis"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/repo"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/infra/config"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/infra/migrate"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// openStore builds the user slot selected by USER_STORE. The returned close
// func releases the underlying connection (noop for memory).
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repo.UserStore, func(), error) {
	switch cfg.UserStore {
	case config.StoreMemory:
		log.Warn("using in-memory user store, state is lost on restart")
		return memory.NewUserStore(), func() {}, nil

	case config.StoreRedis:
		cli := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := myRedisStore.NewRedisUserStore(cli, cfg.RedisKey)
		if err := pingWithTimeout(ctx, store); err != nil {
			_ = cli.Close()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		return store, func() { _ = cli.Close() }, nil

	case config.StorePostgres:
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("postgres handle: %w", err)
		}
		if err := migrate.Up(sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		return myPostgresStore.NewPostgresUserStore(db), func() { _ = sqlDB.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown user store %q", cfg.UserStore)
}

func pingWithTimeout(ctx context.Context, s repo.UserStore) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.Ping(ctx)
}
