// Package logging builds the zap logger and the gin request-logging
// middleware shared by both binaries.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lukasito25/portfolio/internal/config"
)

// New builds a logger from the configuration. Production environments and
// logging.json select the JSON encoder; otherwise a console encoder is used.
func New(cfg *config.Config, service string) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.IsProduction() || cfg.Logging.JSON {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(ParseLevel(cfg.Logging.Level))

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}

	return logger.With(
		zap.String("service", service),
		zap.String("environment", cfg.Server.Environment),
	), nil
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
