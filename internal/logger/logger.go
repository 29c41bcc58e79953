// Package logger builds the zap logger used by every component of the
// agent kernel.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls logger construction.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	OutputPath string // stdout, stderr, or a file path
}

// DefaultLevel mirrors the aios_agent=info default named in the spec's
// external interfaces section; AIOS_LOG_LEVEL overrides it.
const DefaultLevel = "info"

// New builds a zap logger from cfg, falling back to info level on a bad
// level string instead of failing construction.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPath := cfg.OutputPath
	if outputPath == "" {
		outputPath = "stderr"
	}

	zc := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         nonEmpty(cfg.Format, "json"),
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{outputPath},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zc.Build()
}

// LevelFromEnv reads AIOS_LOG_LEVEL, falling back to DefaultLevel.
func LevelFromEnv() string {
	if v := os.Getenv("AIOS_LOG_LEVEL"); v != "" {
		return v
	}
	return DefaultLevel
}

func nonEmpty(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
