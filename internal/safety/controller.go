// Package safety implements the interval-bounded relay cycle controller: the
// only component allowed to drive the pump's power relay, and the gate that
// keeps a flapping detector from destroying the motor through over-cycling.
package safety

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pumpwatch/internal/config"
	"pumpwatch/internal/types"
)

// rollingWindow is the span over which the daily cycle cap applies.
const rollingWindow = 24 * time.Hour

// Suppression reasons recorded on RelayActions. These strings are read by
// field techs in the action log; keep them stable.
const (
	ReasonDailyCap = "daily cap reached"
	ReasonCooldown = "cooldown active"
	ReasonRelay    = "relay actuation failed — hardware fault"
)

// Controller decides whether a hazardous reading may trigger a physical power
// cycle. State is owned exclusively by the controller and mutated only by
// Evaluate; the monitoring loop is sequential, so no locking is needed.
//
// Cooldown and Suspended are derived each evaluation from LastCycleTimestamp
// and the rolling window — there are no timers to leak or drift.
type Controller struct {
	actuator types.RelayActuator
	logger   *slog.Logger

	lastCycle *time.Time
	window    []time.Time // completed cycle timestamps within the rolling window
	phase     types.ControllerPhase
}

// NewController creates a Controller in the Armed phase.
func NewController(actuator types.RelayActuator, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		actuator: actuator,
		logger:   logger.With("component", "safety"),
		phase:    types.PhaseArmed,
	}
}

// Phase returns the controller's current derived phase. Diagnostic only.
func (c *Controller) Phase() types.ControllerPhase { return c.phase }

// CyclesInWindow returns the number of completed cycles still inside the
// rolling window as of the last evaluation. Diagnostic only.
func (c *Controller) CyclesInWindow() int { return len(c.window) }

// Evaluate applies one classified reading to the state machine.
//
// A nil action with a nil error is the routine case: nothing hazardous, and
// routine non-events are deliberately not recorded or logged. A non-nil
// action is either a Completed power cycle or a Suppressed record explaining
// why the cycle was withheld.
//
// A non-nil error is always fatal-class (relay actuation fault): the caller
// must not continue monitoring as if power were restored.
func (c *Controller) Evaluate(ctx context.Context, status types.PumpState, now time.Time, snap *config.Snapshot) (*types.RelayAction, error) {
	c.prune(now)
	c.derivePhase(now, snap)

	if !c.hazardous(status, snap) {
		return nil, nil
	}

	if len(c.window) >= snap.MaxDailyCycles {
		c.phase = types.PhaseSuspended
		c.logger.Warn("power cycle suppressed",
			"reason", ReasonDailyCap,
			"cycles_in_window", len(c.window),
			"max_daily_cycles", snap.MaxDailyCycles,
		)
		return c.action(now, types.ActionSuppressed, ReasonDailyCap, types.OutcomeCompleted), nil
	}

	if c.lastCycle != nil && now.Sub(*c.lastCycle) < snap.MinimumCycleInterval {
		c.logger.Warn("power cycle suppressed",
			"reason", ReasonCooldown,
			"since_last_cycle", now.Sub(*c.lastCycle).String(),
			"minimum_interval", snap.MinimumCycleInterval.String(),
		)
		return c.action(now, types.ActionSuppressed, ReasonCooldown, types.OutcomeCompleted), nil
	}

	return c.cycle(ctx, status, now, snap)
}

// cycle executes the power cycle: relay off, a cancellable delay, relay on.
// Cancellation during the delay still completes the relay-on step — the pump
// must never be left intentionally powered off on shutdown.
func (c *Controller) cycle(ctx context.Context, status types.PumpState, now time.Time, snap *config.Snapshot) (*types.RelayAction, error) {
	c.phase = types.PhaseCycling
	c.logger.Info("executing power cycle",
		"off_duration", snap.PowerCycleDelay.String(),
	)

	if err := c.actuator.SetPower(ctx, false); err != nil {
		c.phase = types.PhaseArmed
		return c.action(now, types.ActionPowerCycle, ReasonRelay, types.OutcomeFailed),
			types.NewAppError(types.ErrCodeRelayActuationFault, "relay power-off failed", err)
	}

	// Timed suspension, not a sleep: shutdown is observed here, but the
	// relay-on below runs regardless.
	timer := time.NewTimer(snap.PowerCycleDelay)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
	}

	// Power restoration runs on a detached context so a cancelled shutdown
	// context cannot abort it.
	onCtx := context.WithoutCancel(ctx)
	if err := c.actuator.SetPower(onCtx, true); err != nil {
		// Do not record a completed cycle: leaving lastCycle unset lets the
		// system retry sooner, and the fault escalates to the supervisor.
		c.phase = types.PhaseArmed
		return c.action(now, types.ActionPowerCycle, ReasonRelay, types.OutcomeFailed),
			types.NewAppError(types.ErrCodeRelayActuationFault, "relay power-on failed", err)
	}

	ts := now
	c.lastCycle = &ts
	c.window = append(c.window, now)
	c.phase = types.PhaseCooldown

	c.logger.Info("power cycle completed",
		"cycles_in_window", len(c.window),
	)
	reason := "rapid cycling detected"
	if status == types.PumpDry {
		reason = "dry condition cycling enabled"
	}
	return c.action(now, types.ActionPowerCycle, reason, types.OutcomeCompleted), nil
}

// hazardous reports whether a state may trigger a cycle. Dry never cycles
// unless explicitly enabled: running a dry pump through a power cycle does
// not bring water back.
func (c *Controller) hazardous(status types.PumpState, snap *config.Snapshot) bool {
	switch status {
	case types.PumpRapidCycle:
		return true
	case types.PumpDry:
		return snap.EnableDryConditionCycling
	}
	return false
}

// prune drops window entries that have aged out.
func (c *Controller) prune(now time.Time) {
	cutoff := now.Add(-rollingWindow)
	i := 0
	for i < len(c.window) && !c.window[i].After(cutoff) {
		i++
	}
	if i > 0 {
		c.window = append(c.window[:0], c.window[i:]...)
	}
}

// derivePhase recomputes the externally visible phase from state.
func (c *Controller) derivePhase(now time.Time, snap *config.Snapshot) {
	switch {
	case len(c.window) >= snap.MaxDailyCycles:
		c.phase = types.PhaseSuspended
	case c.lastCycle != nil && now.Sub(*c.lastCycle) < snap.MinimumCycleInterval:
		c.phase = types.PhaseCooldown
	default:
		c.phase = types.PhaseArmed
	}
}

func (c *Controller) action(now time.Time, kind types.ActionKind, reason string, outcome types.ActionOutcome) *types.RelayAction {
	return &types.RelayAction{
		ID:           uuid.New().String(),
		TimestampUTC: now,
		Kind:         kind,
		Reason:       reason,
		Outcome:      outcome,
	}
}
