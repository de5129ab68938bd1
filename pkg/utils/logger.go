package utils

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerOptions controls how the application logger is built.
type LoggerOptions struct {
	Level       string // debug, info, warn, error
	LogDir      string // file output lands here when EnableFile is set
	EnableFile  bool
	Development bool // console encoder, debug level, caller info
}

// NewLogger builds the zap logger used across the daemon.
func NewLogger(opts LoggerOptions) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	cfg.OutputPaths = []string{"stderr"}
	if opts.EnableFile && opts.LogDir != "" {
		if err := os.MkdirAll(opts.LogDir, 0755); err == nil {
			cfg.OutputPaths = append(cfg.OutputPaths, filepath.Join(opts.LogDir, "snipsaved.log"))
		}
	}

	return cfg.Build()
}
