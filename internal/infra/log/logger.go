package log

import (
	"crypto/sha256"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a development-style zap logger. levelEnv is a zap level name
// ("debug", "info", ...); an empty or bad value falls back to info.
func New(levelEnv string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)

	if levelEnv != "" {
		if err := cfg.Level.UnmarshalText([]byte(levelEnv)); err != nil {
			fmt.Fprintf(os.Stderr, "bad LOG_LEVEL=%s, fallback to info\n", levelEnv)
		}
	}
	return cfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
}

func Must(levelEnv string) *zap.Logger {
	l, err := New(levelEnv)
	if err != nil {
		panic(err)
	}
	return l
}

// Subject hides an identifier (username) behind its sha256 digest.
func Subject(id string) zap.Field {
	return zap.String("user", fmt.Sprintf("%x", sha256.Sum256([]byte(id))))
}
