package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlitelib "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/louisbranch/brigade/internal/domain/event"
	"github.com/louisbranch/brigade/internal/storage"
)

const eventColumns = "aggregate_id, version, event_type, timestamp, recorded_at, actor_type, actor_id, meta_json, payload_json"

// Append atomically appends a batch with contiguous versions after
// expectedVersion. A stale expectedVersion fails with a ConflictError and
// stores nothing.
func (s *Store) Append(ctx context.Context, aggregateID string, expectedVersion uint64, events []event.Event) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if s.registry == nil {
		return nil, fmt.Errorf("event registry is required")
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("append requires at least one event")
	}
	aggregateID = strings.TrimSpace(aggregateID)
	if aggregateID == "" {
		return nil, fmt.Errorf("aggregate id is required")
	}

	// Validate everything before opening a transaction.
	validated := make([]event.Event, len(events))
	for i, evt := range events {
		v, err := s.registry.ValidateForAppend(evt)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		if v.AggregateID != aggregateID {
			return nil, fmt.Errorf("event %d: aggregate id %q does not match stream %q", i, v.AggregateID, aggregateID)
		}
		validated[i] = v
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var head uint64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = ?",
		aggregateID,
	).Scan(&head); err != nil {
		return nil, fmt.Errorf("read stream head: %w", err)
	}
	if head != expectedVersion {
		return nil, &storage.ConflictError{
			AggregateID:     aggregateID,
			ExpectedVersion: expectedVersion,
			ActualVersion:   head,
		}
	}

	recordedAt := s.clock()().UTC().Truncate(time.Millisecond)
	stored := make([]event.Event, len(validated))
	for i, evt := range validated {
		evt.Version = expectedVersion + uint64(i) + 1
		evt.RecordedAt = recordedAt

		metaJSON := []byte("{}")
		if len(evt.Meta) > 0 {
			metaJSON, err = json.Marshal(evt.Meta)
			if err != nil {
				return nil, fmt.Errorf("event %d: marshal meta: %w", i, err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO events ("+eventColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			evt.AggregateID,
			int64(evt.Version),
			string(evt.Type),
			toMillis(evt.Timestamp),
			toMillis(evt.RecordedAt),
			string(evt.ActorType),
			evt.ActorID,
			string(metaJSON),
			evt.PayloadJSON,
		); err != nil {
			// A concurrent writer can slip in between the head read and the
			// insert; the primary key turns that race into a conflict.
			if isConstraintError(err) {
				return nil, &storage.ConflictError{
					AggregateID:     aggregateID,
					ExpectedVersion: expectedVersion,
					ActualVersion:   evt.Version,
				}
			}
			return nil, fmt.Errorf("append event %d: %w", i, err)
		}
		stored[i] = evt
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return stored, nil
}

// Load returns every event of an aggregate ordered by version.
func (s *Store) Load(ctx context.Context, aggregateID string) ([]event.Event, error) {
	return s.queryEvents(ctx, aggregateID,
		"SELECT "+eventColumns+" FROM events WHERE aggregate_id = ? ORDER BY version",
		aggregateID)
}

// LoadAfter returns events with a version greater than afterVersion.
func (s *Store) LoadAfter(ctx context.Context, aggregateID string, afterVersion uint64) ([]event.Event, error) {
	return s.queryEvents(ctx, aggregateID,
		"SELECT "+eventColumns+" FROM events WHERE aggregate_id = ? AND version > ? ORDER BY version",
		aggregateID, int64(afterVersion))
}

// LoadUpTo returns events recorded at or before the given instant.
func (s *Store) LoadUpTo(ctx context.Context, aggregateID string, until time.Time) ([]event.Event, error) {
	return s.queryEvents(ctx, aggregateID,
		"SELECT "+eventColumns+" FROM events WHERE aggregate_id = ? AND recorded_at <= ? ORDER BY version",
		aggregateID, toMillis(until))
}

// LoadBetween returns events recorded inside the inclusive window.
func (s *Store) LoadBetween(ctx context.Context, aggregateID string, from, to time.Time) ([]event.Event, error) {
	return s.queryEvents(ctx, aggregateID,
		"SELECT "+eventColumns+" FROM events WHERE aggregate_id = ? AND recorded_at >= ? AND recorded_at <= ? ORDER BY version",
		aggregateID, toMillis(from), toMillis(to))
}

// LatestVersion returns the aggregate head, zero when no events exist.
func (s *Store) LatestVersion(ctx context.Context, aggregateID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(aggregateID) == "" {
		return 0, fmt.Errorf("aggregate id is required")
	}

	var head uint64
	if err := s.sqlDB.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = ?",
		aggregateID,
	).Scan(&head); err != nil {
		return 0, fmt.Errorf("read stream head: %w", err)
	}
	return head, nil
}

func (s *Store) queryEvents(ctx context.Context, aggregateID, query string, args ...any) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(aggregateID) == "" {
		return nil, fmt.Errorf("aggregate id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var (
			evt        event.Event
			version    int64
			eventType  string
			timestamp  int64
			recordedAt int64
			actorType  string
			metaJSON   string
		)
		if err := rows.Scan(
			&evt.AggregateID,
			&version,
			&eventType,
			&timestamp,
			&recordedAt,
			&actorType,
			&evt.ActorID,
			&metaJSON,
			&evt.PayloadJSON,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Version = uint64(version)
		evt.Type = event.Type(eventType)
		evt.Timestamp = fromMillis(timestamp)
		evt.RecordedAt = fromMillis(recordedAt)
		evt.ActorType = event.ActorType(actorType)
		if metaJSON != "" && metaJSON != "{}" {
			if err := json.Unmarshal([]byte(metaJSON), &evt.Meta); err != nil {
				return nil, fmt.Errorf("unmarshal event meta: %w", err)
			}
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func (s *Store) clock() func() time.Time {
	if s.now != nil {
		return s.now
	}
	return time.Now
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlitelib.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
