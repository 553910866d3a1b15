// Package logging builds the zap loggers shared by every component.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production logger named after the component. When debug is
// set the level drops to Debug so pipeline traces become visible.
func New(name string, debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build: %w", err)
	}
	if name != "" {
		logger = logger.Named(name)
	}
	return logger, nil
}
