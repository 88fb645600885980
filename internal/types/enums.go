package types

// PumpState classifies one observation of the pump's current-draw display.
// It is a closed tagged set; ordering between states carries no meaning.
type PumpState string

const (
	// PumpOff: measured current below the off threshold.
	PumpOff PumpState = "off"
	// PumpIdle: pump energized but not moving water.
	PumpIdle PumpState = "idle"
	// PumpNormal: current within the configured normal pumping band.
	PumpNormal PumpState = "normal"
	// PumpDry: display shows a dry-run fault keyword.
	PumpDry PumpState = "dry"
	// PumpRapidCycle: display shows a rapid-cycling fault keyword.
	// This is the only state that can trigger a relay power cycle.
	PumpRapidCycle PumpState = "rapid_cycle"
	// PumpUnknown: no usable text, no numeric match, or a value outside
	// every known band.
	PumpUnknown PumpState = "unknown"
)

// Valid reports whether s is a member of the closed PumpState set.
func (s PumpState) Valid() bool {
	switch s {
	case PumpOff, PumpIdle, PumpNormal, PumpDry, PumpRapidCycle, PumpUnknown:
		return true
	}
	return false
}

// ActionKind identifies what the safety controller did in response to a
// hazardous reading.
type ActionKind string

const (
	ActionPowerCycle ActionKind = "power_cycle"
	ActionSuppressed ActionKind = "suppressed"
)

// ActionOutcome records whether an executed action ran to completion.
type ActionOutcome string

const (
	OutcomeCompleted ActionOutcome = "completed"
	OutcomeFailed    ActionOutcome = "failed"
)

// ControllerPhase is the safety controller's externally visible phase.
// Cooldown and Suspended are derived labels: they are recomputed from
// LastCycleTimestamp and the rolling window on every evaluation rather
// than driven by timers.
type ControllerPhase string

const (
	PhaseArmed     ControllerPhase = "armed"
	PhaseCycling   ControllerPhase = "cycling"
	PhaseCooldown  ControllerPhase = "cooldown"
	PhaseSuspended ControllerPhase = "suspended"
)
