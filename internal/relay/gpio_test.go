package relay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpwatch/internal/config"
	"pumpwatch/internal/types"
)

type writeRecorder struct {
	path   string
	values []string
	err    error
}

func (w *writeRecorder) write(path string, data []byte) error {
	w.path = path
	w.values = append(w.values, string(data))
	return w.err
}

func newActuator(rec *writeRecorder, activeLow bool) *GPIOActuator {
	a := NewGPIOActuator(config.RelayConfig{
		GPIOPath:  "/sys/class/gpio/gpio17/value",
		ActiveLow: activeLow,
	}, nil)
	a.writeFile = rec.write
	return a
}

func TestSetPower_ActiveHigh(t *testing.T) {
	rec := &writeRecorder{}
	a := newActuator(rec, false)

	require.NoError(t, a.SetPower(context.Background(), true))
	require.NoError(t, a.SetPower(context.Background(), false))

	assert.Equal(t, "/sys/class/gpio/gpio17/value", rec.path)
	assert.Equal(t, []string{"1", "0"}, rec.values)
}

func TestSetPower_ActiveLowInverts(t *testing.T) {
	rec := &writeRecorder{}
	a := newActuator(rec, true)

	require.NoError(t, a.SetPower(context.Background(), true))
	require.NoError(t, a.SetPower(context.Background(), false))

	assert.Equal(t, []string{"0", "1"}, rec.values)
}

func TestSetPower_WriteFailureIsFatalClass(t *testing.T) {
	rec := &writeRecorder{err: errors.New("permission denied")}
	a := newActuator(rec, false)

	err := a.SetPower(context.Background(), true)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeRelayActuationFault, appErr.Code)
	assert.True(t, appErr.Fatal())
	assert.Equal(t, "/sys/class/gpio/gpio17/value", appErr.Details["path"])
	assert.Equal(t, true, appErr.Details["on"])
}
