// Package logging adapts zap to the SDK's Logger contract and provides the
// logging adapter that enriches error records with normalized fields.
package logging

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	opsconnect "github.com/marwen-abid/opsconnect-sdk-go"
	"github.com/marwen-abid/opsconnect-sdk-go/config"
)

// New builds a zap logger from cfg. An empty level means info; format is
// "json" (default) or "console".
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to parse log level: %w", err)
		}
		zc.Level = level
	}
	switch cfg.Format {
	case "", "json":
	case "console":
		zc.Encoding = "console"
	default:
		return nil, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// Zap implements opsconnect.Logger on top of a *zap.Logger.
type Zap struct {
	logger *zap.Logger
}

// NewZap wraps l. A nil l logs nowhere.
func NewZap(l *zap.Logger) *Zap {
	if l == nil {
		l = zap.NewNop()
	}
	return &Zap{logger: l}
}

// Info logs msg at info level.
func (z *Zap) Info(msg string, err error, fields map[string]any) {
	z.logger.Info(msg, zapFields(err, fields)...)
}

// Error logs msg at error level.
func (z *Zap) Error(msg string, err error, fields map[string]any) {
	z.logger.Error(msg, zapFields(err, fields)...)
}

// zapFields converts fields in key order so output is stable.
func zapFields(err error, fields map[string]any) []zap.Field {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys)+1)
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	if err != nil {
		out = append(out, zap.Error(err))
	}
	return out
}

var _ opsconnect.Logger = (*Zap)(nil)
