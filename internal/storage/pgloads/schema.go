package pgloads

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS quotes (
  id BIGSERIAL PRIMARY KEY,
  quote_number TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'pending',
  customer_name TEXT NULL,
  origin TEXT NULL,
  destination TEXT NULL,
  load_id BIGINT NULL,
  converted_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`
CREATE TABLE IF NOT EXISTS loads (
  id BIGSERIAL PRIMARY KEY,
  tracking_number TEXT NOT NULL UNIQUE,
  container_number TEXT NOT NULL UNIQUE,
  reference_number TEXT NULL,
  portpro_id TEXT NULL,
  status TEXT NOT NULL,
  status_raw TEXT NOT NULL DEFAULT '',
  origin TEXT NULL,
  destination TEXT NULL,
  customer_name TEXT NULL,
  shipper_name TEXT NULL,
  consignee_name TEXT NULL,
  container_size TEXT NULL,
  container_type TEXT NULL,
  container_owner TEXT NULL,
  booking_number TEXT NULL,
  bill_of_lading TEXT NULL,
  revenue NUMERIC(14,2) NULL,
  margin NUMERIC(14,2) NULL,
  last_free_day TIMESTAMPTZ NULL,
  portpro_updated_at TIMESTAMPTZ NULL,
  quote_id BIGINT NULL REFERENCES quotes(id) ON DELETE SET NULL,
  synced_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_loads_reference_number ON loads(reference_number)`,
		`
CREATE TABLE IF NOT EXISTS tracking_events (
  id BIGSERIAL PRIMARY KEY,
  load_id BIGINT NOT NULL REFERENCES loads(id) ON DELETE CASCADE,
  move_number INT NOT NULL,
  stop_number INT NOT NULL,
  event_type TEXT NOT NULL,
  event_type_raw TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  location TEXT NULL,
  arrived_at TIMESTAMPTZ NULL,
  departed_at TIMESTAMPTZ NULL,
  duration_seconds BIGINT NULL,
  source TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  UNIQUE (load_id, move_number, stop_number)
)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_events_load_source ON tracking_events(load_id, source)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
