// Package relay drives the pump power relay through a sysfs GPIO value file.
// The relay is a single digital output; a failed write is fatal-class because
// the daemon can no longer prove the pump is powered.
package relay

import (
	"context"
	"log/slog"
	"os"

	"pumpwatch/internal/config"
	"pumpwatch/internal/types"
)

// GPIOActuator implements RelayActuator over a sysfs GPIO line.
type GPIOActuator struct {
	path      string
	activeLow bool
	logger    *slog.Logger

	// writeFile is swappable in tests.
	writeFile func(path string, data []byte) error
}

// NewGPIOActuator creates a RelayActuator from relay configuration.
func NewGPIOActuator(cfg config.RelayConfig, logger *slog.Logger) *GPIOActuator {
	if logger == nil {
		logger = slog.Default()
	}
	return &GPIOActuator{
		path:      cfg.GPIOPath,
		activeLow: cfg.ActiveLow,
		logger:    logger.With("component", "relay"),
		writeFile: func(path string, data []byte) error {
			return os.WriteFile(path, data, 0o644)
		},
	}
}

// SetPower drives the relay line. The ctx parameter is accepted for contract
// symmetry; a sysfs write is not cancellable.
func (a *GPIOActuator) SetPower(_ context.Context, on bool) error {
	level := on
	if a.activeLow {
		level = !on
	}
	value := []byte("0")
	if level {
		value = []byte("1")
	}

	if err := a.writeFile(a.path, value); err != nil {
		return types.NewAppError(types.ErrCodeRelayActuationFault,
			"writing relay gpio value", err).WithDetails(map[string]any{
			"path": a.path,
			"on":   on,
		})
	}

	a.logger.Info("relay power set", "on", on)
	return nil
}

var _ types.RelayActuator = (*GPIOActuator)(nil)
