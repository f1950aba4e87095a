package config

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the process logger at Log.Level: console output in
// development, JSON otherwise.
func (c *Config) NewLogger() (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if c.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zcfg.Level = level
	return zcfg.Build()
}
