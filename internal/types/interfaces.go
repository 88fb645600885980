package types

import (
	"context"
	"time"
)

// ImageSource captures one frame of the pump display. Implemented by the
// camera CLI wrapper; failure means the cycle is skipped, never aborted.
type ImageSource interface {
	Capture(ctx context.Context) ([]byte, error)
}

// RelayActuator toggles the pump's power relay. SetPower failure is
// fatal-class: the controller must not assume power was restored.
type RelayActuator interface {
	SetPower(ctx context.Context, on bool) error
}

// PersistenceSink receives classified readings and relay actions. Append is
// fire-and-forget from the monitoring loop's perspective and must not block;
// delivery failures are the sink's concern.
type PersistenceSink interface {
	Append(reading *Reading, action *RelayAction)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }
