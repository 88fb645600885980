package db

import (
	"context"
	"log/slog"
	"time"

	"pumpwatch/internal/types"
)

// appendEntry is one unit of work for the sink's writer goroutine.
type appendEntry struct {
	reading *types.Reading
	action  *types.RelayAction
}

// writeTimeout bounds each database write so a stalled connection cannot
// back the buffer up indefinitely.
const writeTimeout = 5 * time.Second

// AsyncSink implements PersistenceSink over a ReadingRepository. Append hands
// the entry to a buffered writer goroutine and returns immediately; the
// monitoring loop must never block on the database. When the buffer is full
// the oldest entry is dropped with a warning — losing a routine reading beats
// stalling the safety pipeline.
type AsyncSink struct {
	repo   *ReadingRepository
	logger *slog.Logger

	entries chan appendEntry
	done    chan struct{}
}

// NewAsyncSink creates a sink with the given buffer size and starts its
// writer goroutine. Call Close during shutdown to drain the buffer.
func NewAsyncSink(repo *ReadingRepository, bufferSize int, logger *slog.Logger) *AsyncSink {
	if logger == nil {
		logger = slog.Default()
	}
	if bufferSize <= 0 {
		bufferSize = 64
	}
	s := &AsyncSink{
		repo:    repo,
		logger:  logger.With("component", "sink"),
		entries: make(chan appendEntry, bufferSize),
		done:    make(chan struct{}),
	}
	go s.writer()
	return s
}

// Append implements PersistenceSink. Fire-and-forget: failures are logged by
// the writer, never surfaced to the loop.
func (s *AsyncSink) Append(reading *types.Reading, action *types.RelayAction) {
	entry := appendEntry{reading: reading, action: action}
	for {
		select {
		case s.entries <- entry:
			return
		default:
		}
		// Buffer full: drop the oldest entry to make room.
		select {
		case dropped := <-s.entries:
			if dropped.reading != nil {
				s.logger.Warn("persistence buffer full; dropping oldest reading",
					"dropped_id", dropped.reading.ID,
				)
			}
		default:
		}
	}
}

// Close stops accepting entries and drains what is buffered.
func (s *AsyncSink) Close() {
	close(s.entries)
	<-s.done
}

// writer is the single goroutine that performs database writes.
func (s *AsyncSink) writer() {
	defer close(s.done)
	for entry := range s.entries {
		s.write(entry)
	}
}

func (s *AsyncSink) write(entry appendEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if entry.reading != nil {
		if err := s.repo.InsertReading(ctx, entry.reading); err != nil {
			s.logger.Warn("failed to persist reading",
				"reading_id", entry.reading.ID,
				"error", err,
			)
		}
	}
	if entry.action != nil {
		if err := s.repo.InsertAction(ctx, entry.action); err != nil {
			s.logger.Warn("failed to persist relay action",
				"action_id", entry.action.ID,
				"error", err,
			)
		}
	}
}

var _ types.PersistenceSink = (*AsyncSink)(nil)
