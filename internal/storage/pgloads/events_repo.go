package pgloads

import (
	"context"
	"time"

	"github.com/abakymuk/nsl-sub001/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// ReplaceSyncedEvents swaps the synced timeline of a load in one
// transaction: delete, then one COPY of the new rows.
func (s *Storage) ReplaceSyncedEvents(ctx context.Context, loadID uint64, events []models.TrackingEvent) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM tracking_events WHERE load_id = $1 AND source = $2`, loadID, models.EventSourcePortPro); err != nil {
		return errors.Wrap(err, "delete events")
	}

	if len(events) > 0 {
		now := time.Now().UTC()
		rows := make([][]any, 0, len(events))
		for _, e := range events {
			source := e.Source
			if source == "" {
				source = models.EventSourcePortPro
			}
			rows = append(rows, []any{
				loadID, e.MoveNumber, e.StopNumber, e.EventType, e.EventTypeRaw, string(e.Status),
				e.Location, e.ArrivedAt, e.DepartedAt, durationSeconds(e.Duration), source, now,
			})
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"tracking_events"},
			[]string{
				"load_id", "move_number", "stop_number", "event_type", "event_type_raw", "status",
				"location", "arrived_at", "departed_at", "duration_seconds", "source", "created_at",
			},
			pgx.CopyFromRows(rows),
		); err != nil {
			return errors.Wrap(err, "insert events")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// ListLoadEvents returns the timeline ordered by move then stop.
func (s *Storage) ListLoadEvents(ctx context.Context, loadID uint64) ([]*models.TrackingEvent, error) {
	rows, err := s.db.Query(ctx, `
SELECT
  id, load_id, move_number, stop_number, event_type, event_type_raw, status,
  location, arrived_at, departed_at, duration_seconds, source, created_at
FROM tracking_events
WHERE load_id = $1
ORDER BY move_number ASC, stop_number ASC
`, loadID)
	if err != nil {
		return nil, errors.Wrap(err, "select events")
	}
	defer rows.Close()

	var out []*models.TrackingEvent
	for rows.Next() {
		var e models.TrackingEvent
		var status string
		var seconds *int64
		if err := rows.Scan(
			&e.ID, &e.LoadID, &e.MoveNumber, &e.StopNumber, &e.EventType, &e.EventTypeRaw, &status,
			&e.Location, &e.ArrivedAt, &e.DepartedAt, &seconds, &e.Source, &e.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		e.Status = models.EventStatus(status)
		if seconds != nil {
			d := time.Duration(*seconds) * time.Second
			e.Duration = &d
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func durationSeconds(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	n := int64(d.Seconds())
	return &n
}
