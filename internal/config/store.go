package config

import (
	"log/slog"
	"sync/atomic"

	"pumpwatch/internal/types"
)

// SnapshotSource is what the monitoring loop consumes: the latest published
// snapshot, loaded atomically once per cycle.
type SnapshotSource interface {
	Current() *Snapshot
}

// SnapshotStore publishes immutable snapshots through an atomic pointer swap.
// Readers hold one snapshot for the duration of a cycle; writers never mutate
// a published snapshot in place. Invalid pushes are rejected and the
// last-known-good snapshot stays in effect.
type SnapshotStore struct {
	current atomic.Pointer[Snapshot]
	version atomic.Int64
	logger  *slog.Logger
}

// NewSnapshotStore creates a store seeded with the given initial snapshot.
// The initial snapshot must be valid; a daemon cannot start without a
// trustworthy configuration.
func NewSnapshotStore(initial *Snapshot, logger *slog.Logger) (*SnapshotStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	st := &SnapshotStore{logger: logger}
	seeded := *initial
	seeded.Version = st.version.Add(1)
	st.current.Store(&seeded)
	return st, nil
}

// Current returns the latest published snapshot. Never nil.
func (st *SnapshotStore) Current() *Snapshot {
	return st.current.Load()
}

// Apply validates and publishes a new snapshot. On validation failure the
// previous snapshot remains in effect and the error is returned for the
// caller to surface as a warning.
func (st *SnapshotStore) Apply(next *Snapshot) error {
	if err := st.Validate(next); err != nil {
		return err
	}
	published := *next
	published.Version = st.version.Add(1)
	st.current.Store(&published)
	st.logger.Info("configuration snapshot applied",
		"version", published.Version,
		"providers", published.ProviderPriority,
		"poll_interval", published.PollInterval.String(),
	)
	return nil
}

// Validate runs snapshot validation and tags the failure with the incoming
// version for diagnostics.
func (st *SnapshotStore) Validate(next *Snapshot) error {
	if next == nil {
		return types.NewAppError(types.ErrCodeConfigMissingField, "nil snapshot", nil)
	}
	if err := next.Validate(); err != nil {
		st.logger.Warn("rejected invalid configuration snapshot; keeping last known good",
			"current_version", st.Current().Version,
			"error", err,
		)
		return err
	}
	return nil
}
