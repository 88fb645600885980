package db

import (
	"context"
	"fmt"

	"pumpwatch/internal/types"
)

// ReadingRepository provides data access for the readings and relay_actions
// tables.
type ReadingRepository struct {
	db       DBTX
	deviceID string
}

// NewReadingRepository creates a ReadingRepository backed by the given
// database connection (pool or transaction). All rows are tagged with the
// device ID so a fleet can share one database.
func NewReadingRepository(db DBTX, deviceID string) *ReadingRepository {
	return &ReadingRepository{db: db, deviceID: deviceID}
}

const insertReadingSQL = `INSERT INTO readings
	(id, device_id, timestamp_utc, current_amps, status, raw_text,
	 confidence, provider_used, processing_duration_ms)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const insertActionSQL = `INSERT INTO relay_actions
	(id, device_id, timestamp_utc, kind, reason, outcome)
	VALUES ($1, $2, $3, $4, $5, $6)`

// InsertReading appends one classified reading.
func (r *ReadingRepository) InsertReading(ctx context.Context, reading *types.Reading) error {
	_, err := r.db.Exec(ctx, insertReadingSQL,
		reading.ID,
		r.deviceID,
		reading.TimestampUTC,
		reading.CurrentAmps,
		string(reading.Status),
		reading.RawText,
		reading.Confidence,
		reading.ProviderUsed,
		reading.ProcessingDuration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("inserting reading %s: %w", reading.ID, err)
	}
	return nil
}

// InsertAction appends one relay action.
func (r *ReadingRepository) InsertAction(ctx context.Context, action *types.RelayAction) error {
	_, err := r.db.Exec(ctx, insertActionSQL,
		action.ID,
		r.deviceID,
		action.TimestampUTC,
		string(action.Kind),
		action.Reason,
		string(action.Outcome),
	)
	if err != nil {
		return fmt.Errorf("inserting relay action %s: %w", action.ID, err)
	}
	return nil
}
