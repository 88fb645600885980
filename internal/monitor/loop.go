// Package monitor sequences the capture -> extract -> classify -> evaluate ->
// persist pipeline, one cycle per interval. One long-lived sequential loop
// runs per device: the relay and camera are single physical resources, and
// serializing cycles keeps relay actions totally ordered by wall clock.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pumpwatch/internal/classify"
	"pumpwatch/internal/config"
	"pumpwatch/internal/extraction"
	"pumpwatch/internal/safety"
	"pumpwatch/internal/types"
)

// FrameArchiver stores raw frames for post-hoc OCR debugging. Archiving is
// best-effort and must never block or fail a cycle.
type FrameArchiver interface {
	Archive(frame []byte, ts time.Time)
}

// LoopConfig holds the collaborators for creating a Loop.
type LoopConfig struct {
	Camera       types.ImageSource
	Orchestrator *extraction.Orchestrator
	Controller   *safety.Controller
	Sink         types.PersistenceSink
	Snapshots    config.SnapshotSource
	Archiver     FrameArchiver // optional
	Clock        types.Clock   // optional; defaults to RealClock
	Logger       *slog.Logger
}

// Loop is the top-level monitoring sequencer.
type Loop struct {
	camera       types.ImageSource
	orchestrator *extraction.Orchestrator
	controller   *safety.Controller
	sink         types.PersistenceSink
	snapshots    config.SnapshotSource
	archiver     FrameArchiver
	clock        types.Clock
	logger       *slog.Logger

	lastStatus types.PumpState
}

// NewLoop creates a Loop from the given collaborators.
func NewLoop(cfg LoopConfig) *Loop {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Loop{
		camera:       cfg.Camera,
		orchestrator: cfg.Orchestrator,
		controller:   cfg.Controller,
		sink:         cfg.Sink,
		snapshots:    cfg.Snapshots,
		archiver:     cfg.Archiver,
		clock:        clock,
		logger:       logger.With("component", "monitor"),
		lastStatus:   types.PumpUnknown,
	}
}

// Run executes cycles until ctx is cancelled or a fatal-class error occurs.
// Per-cycle errors (capture faults, exhausted provider chains) are recovered:
// a single bad frame must never terminate monitoring. Only a relay actuation
// fault unwinds to the caller.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("monitoring loop started")

	for {
		if err := l.runCycle(ctx); err != nil {
			l.logger.Error("fatal fault; stopping monitoring", "error", err)
			return err
		}

		// The interval is re-read each cycle so a config push takes effect
		// on the next wait without restarting the loop.
		interval := l.snapshots.Current().PollInterval
		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			l.logger.Info("monitoring loop stopped")
			return nil
		}
	}
}

// runCycle executes one full monitoring cycle against a single snapshot
// loaded at cycle start; a mid-cycle config push cannot tear the cycle.
func (l *Loop) runCycle(ctx context.Context) error {
	snap := l.snapshots.Current()
	now := l.clock.Now()

	frame, err := l.camera.Capture(ctx)
	if err != nil {
		l.logger.Warn("frame capture failed; skipping cycle",
			"stage", "capture",
			"error", err,
		)
		return nil
	}

	if l.archiver != nil {
		l.archiver.Archive(frame, now)
	}

	started := l.clock.Now()
	res, err := l.orchestrator.Extract(ctx, frame, snap)
	if err != nil {
		l.logger.Warn("extraction failed; skipping cycle",
			"stage", "extract",
			"error", err,
		)
		return nil
	}

	amps, status := classify.Classify(res.RawText, res.Confidence, snap)

	reading := &types.Reading{
		ID:                 uuid.New().String(),
		TimestampUTC:       now,
		CurrentAmps:        amps,
		Status:             status,
		RawText:            res.RawText,
		Confidence:         res.Confidence,
		ProviderUsed:       res.ProviderName,
		ProcessingDuration: l.clock.Now().Sub(started),
	}

	l.logTransition(res, reading)

	action, evalErr := l.controller.Evaluate(ctx, status, now, snap)

	// Persist what happened before deciding whether to die: a failed relay
	// action must reach the log even as the fault escalates.
	l.sink.Append(reading, action)

	if evalErr != nil {
		var appErr *types.AppError
		if errors.As(evalErr, &appErr) && appErr.Fatal() {
			return evalErr
		}
		l.logger.Warn("safety evaluation failed",
			"stage", "evaluate",
			"error", evalErr,
		)
	}
	return nil
}

// logTransition logs state changes and anomalies only; a pump humming along
// in the same state produces no log line.
func (l *Loop) logTransition(res *types.ExtractionResult, reading *types.Reading) {
	if reading.Status == l.lastStatus {
		return
	}
	l.logger.Info("pump state changed",
		"from", string(l.lastStatus),
		"to", string(reading.Status),
		"raw_text", reading.RawText,
		"confidence", reading.Confidence,
		"provider", reading.ProviderUsed,
		"low_confidence", res.Exhausted && res.Success,
		"no_provider", res.Exhausted && !res.Success,
	)
	l.lastStatus = reading.Status
}
