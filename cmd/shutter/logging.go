package main

import (
	"context"
	"fmt"

	"github.com/zoobzio/capitan"
	"go.uber.org/zap"

	"github.com/zoobzio/shutter"
	"github.com/zoobzio/shutter/internal/config"
)

// newLogger builds a zap logger at cfg's level writing to output.
func newLogger(cfg config.LogConfig, output string) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc.Level = level
	zc.OutputPaths = []string{output}
	zc.ErrorOutputPaths = []string{output}
	return zc.Build()
}

// hookSignals logs the shutter signals operators care about.
func hookSignals(logger *zap.Logger) {
	events := logger.Named("events")

	capitan.Hook(shutter.RecordingStarted, func(_ context.Context, e *capitan.Event) {
		dest, _ := shutter.KeyDestination.From(e)
		events.Info("recording started", zap.String("destination", dest))
	})
	capitan.Hook(shutter.RecordingStopped, func(_ context.Context, e *capitan.Event) {
		dest, _ := shutter.KeyDestination.From(e)
		events.Info("recording stopped", zap.String("destination", dest))
	})
	capitan.Hook(shutter.ControllerOperationFailed, func(_ context.Context, e *capitan.Event) {
		op, _ := shutter.KeyOperation.From(e)
		msg, _ := shutter.KeyError.From(e)
		events.Warn("operation failed", zap.String("operation", op), zap.String("error", msg))
	})
	capitan.Hook(shutter.ExecutorDrainTimeout, func(_ context.Context, e *capitan.Event) {
		dropped, _ := shutter.KeyDropped.From(e)
		events.Warn("executor abandoned work", zap.Int("dropped", dropped))
	})
}
