package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"

	HasherHMACSHA512 = "hmac-sha512"
	HasherArgon2ID   = "argon2id"
)

type Config struct {
	HTTPAddress string
	GRPCAddress string

	TokenSigningKey string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	PasswordHasher  string

	UserStore     string
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	DatabaseURL   string

	AllowedOrigins   []string
	AllowCredentials bool
	CookieDomain     string
	CookieSecure     bool

	RateLimitRPS   int
	RateLimitBurst int

	HTTPSCertFile string
	HTTPSKeyFile  string

	LogLevel string
}

var envKeys = []string{
	"HTTP_ADDRESS", "GRPC_ADDRESS",
	"TOKEN_SIGNING_KEY", "JWT_ISSUER", "ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL", "PASSWORD_HASHER",
	"USER_STORE", "REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB", "REDIS_KEY", "DATABASE_URL",
	"ALLOWED_ORIGINS", "ALLOW_CREDENTIALS", "COOKIE_DOMAIN", "COOKIE_SECURE",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"HTTPS_CERT_FILE", "HTTPS_KEY_FILE",
	"LOG_LEVEL",
}

// Load reads config.json from the working directory (optional) and lets
// environment variables override every key.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")

	v.SetDefault("HTTP_ADDRESS", ":8080")
	v.SetDefault("ACCESS_TOKEN_TTL", "30m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")
	v.SetDefault("PASSWORD_HASHER", HasherHMACSHA512)
	v.SetDefault("USER_STORE", StoreMemory)
	v.SetDefault("REDIS_KEY", "weather-auth:user")
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("LOG_LEVEL", "info")

	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	origins, err := parseList(v.GetString("ALLOWED_ORIGINS"))
	if err != nil {
		return nil, fmt.Errorf("ALLOWED_ORIGINS: %w", err)
	}

	cfg := &Config{
		HTTPAddress:      v.GetString("HTTP_ADDRESS"),
		GRPCAddress:      v.GetString("GRPC_ADDRESS"),
		TokenSigningKey:  v.GetString("TOKEN_SIGNING_KEY"),
		Issuer:           v.GetString("JWT_ISSUER"),
		AccessTokenTTL:   v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL:  v.GetDuration("REFRESH_TOKEN_TTL"),
		PasswordHasher:   strings.ToLower(v.GetString("PASSWORD_HASHER")),
		UserStore:        strings.ToLower(v.GetString("USER_STORE")),
		RedisAddress:     v.GetString("REDIS_ADDRESS"),
		RedisPassword:    v.GetString("REDIS_PASSWORD"),
		RedisDB:          v.GetInt("REDIS_DB"),
		RedisKey:         v.GetString("REDIS_KEY"),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		AllowedOrigins:   origins,
		AllowCredentials: v.GetBool("ALLOW_CREDENTIALS"),
		CookieDomain:     v.GetString("COOKIE_DOMAIN"),
		CookieSecure:     v.GetBool("COOKIE_SECURE"),
		RateLimitRPS:     v.GetInt("RATE_LIMIT_RPS"),
		RateLimitBurst:   v.GetInt("RATE_LIMIT_BURST"),
		HTTPSCertFile:    v.GetString("HTTPS_CERT_FILE"),
		HTTPSKeyFile:     v.GetString("HTTPS_KEY_FILE"),
		LogLevel:         v.GetString("LOG_LEVEL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.TokenSigningKey == "" {
		return errors.New("TOKEN_SIGNING_KEY is required")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}

	switch c.PasswordHasher {
	case HasherHMACSHA512, HasherArgon2ID:
	default:
		return fmt.Errorf("unknown PASSWORD_HASHER %q", c.PasswordHasher)
	}

	switch c.UserStore {
	case StoreMemory:
	case StoreRedis:
		if c.RedisAddress == "" {
			return errors.New("REDIS_ADDRESS is required for the redis user store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres user store")
		}
	default:
		return fmt.Errorf("unknown USER_STORE %q", c.UserStore)
	}

	if (c.HTTPSCertFile == "") != (c.HTTPSKeyFile == "") {
		return errors.New("HTTPS_CERT_FILE and HTTPS_KEY_FILE must be set together")
	}
	return nil
}

// TLSEnabled reports whether both HTTPS files are configured.
func (c *Config) TLSEnabled() bool {
	return c.HTTPSCertFile != "" && c.HTTPSKeyFile != ""
}

// parseList accepts either a JSON array or a comma separated string.
func parseList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, err
		}
		return out, nil
	}

	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}
