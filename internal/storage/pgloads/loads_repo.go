package pgloads

import (
	"context"
	"time"

	"github.com/abakymuk/nsl-sub001/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const loadColumns = `
  id, tracking_number, container_number, reference_number, portpro_id,
  status, status_raw, origin, destination,
  customer_name, shipper_name, consignee_name,
  container_size, container_type, container_owner, booking_number, bill_of_lading,
  revenue, margin, last_free_day, portpro_updated_at, quote_id,
  synced_at, created_at, updated_at`

func scanLoad(row pgx.Row) (*models.Load, error) {
	var l models.Load
	var status string
	var revenue, margin decimal.NullDecimal
	if err := row.Scan(
		&l.ID, &l.TrackingNumber, &l.ContainerNumber, &l.ReferenceNumber, &l.PortProID,
		&status, &l.StatusRaw, &l.Origin, &l.Destination,
		&l.CustomerName, &l.ShipperName, &l.ConsigneeName,
		&l.ContainerSize, &l.ContainerType, &l.ContainerOwner, &l.BookingNumber, &l.BillOfLading,
		&revenue, &margin, &l.LastFreeDay, &l.PortProUpdatedAt, &l.QuoteID,
		&l.SyncedAt, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan load")
	}
	l.Status = models.LoadStatus(status)
	l.Revenue = fromNullDecimal(revenue)
	l.Margin = fromNullDecimal(margin)
	return &l, nil
}

func (s *Storage) GetLoadByContainerNumber(ctx context.Context, containerNumber string) (*models.Load, error) {
	return scanLoad(s.db.QueryRow(ctx, `SELECT`+loadColumns+` FROM loads WHERE container_number = $1`, containerNumber))
}

func (s *Storage) GetLoadByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Load, error) {
	return scanLoad(s.db.QueryRow(ctx, `SELECT`+loadColumns+` FROM loads WHERE tracking_number = $1`, trackingNumber))
}

func (s *Storage) GetLoadByID(ctx context.Context, id uint64) (*models.Load, error) {
	return scanLoad(s.db.QueryRow(ctx, `SELECT`+loadColumns+` FROM loads WHERE id = $1`, id))
}

// InsertLoad fails with a unique violation when another run already created
// a load for the container.
func (s *Storage) InsertLoad(ctx context.Context, trackingNumber string, in models.LoadUpsert) (*models.Load, error) {
	now := time.Now().UTC()
	return scanLoad(s.db.QueryRow(ctx, `
INSERT INTO loads (
  tracking_number, container_number, reference_number, portpro_id,
  status, status_raw, origin, destination,
  customer_name, shipper_name, consignee_name,
  container_size, container_type, container_owner, booking_number, bill_of_lading,
  revenue, margin, last_free_day, portpro_updated_at,
  synced_at, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$22)
RETURNING`+loadColumns,
		trackingNumber, in.ContainerNumber, in.ReferenceNumber, in.PortProID,
		string(in.Status), in.StatusRaw, in.Origin, in.Destination,
		in.CustomerName, in.ShipperName, in.ConsigneeName,
		in.ContainerSize, in.ContainerType, in.ContainerOwner, in.BookingNumber, in.BillOfLading,
		toNullDecimal(in.Revenue), toNullDecimal(in.Margin), in.LastFreeDay, in.PortProUpdatedAt,
		in.SyncedAt.UTC(), now,
	))
}

// UpdateLoad rewrites the synced columns; tracking_number and quote_id stay.
func (s *Storage) UpdateLoad(ctx context.Context, id uint64, in models.LoadUpsert) (*models.Load, error) {
	return scanLoad(s.db.QueryRow(ctx, `
UPDATE loads SET
  container_number = $2,
  reference_number = $3,
  portpro_id = $4,
  status = $5,
  status_raw = $6,
  origin = $7,
  destination = $8,
  customer_name = $9,
  shipper_name = $10,
  consignee_name = $11,
  container_size = $12,
  container_type = $13,
  container_owner = $14,
  booking_number = $15,
  bill_of_lading = $16,
  revenue = $17,
  margin = $18,
  last_free_day = $19,
  portpro_updated_at = $20,
  synced_at = $21,
  updated_at = now()
WHERE id = $1
RETURNING`+loadColumns,
		id, in.ContainerNumber, in.ReferenceNumber, in.PortProID,
		string(in.Status), in.StatusRaw, in.Origin, in.Destination,
		in.CustomerName, in.ShipperName, in.ConsigneeName,
		in.ContainerSize, in.ContainerType, in.ContainerOwner, in.BookingNumber, in.BillOfLading,
		toNullDecimal(in.Revenue), toNullDecimal(in.Margin), in.LastFreeDay, in.PortProUpdatedAt,
		in.SyncedAt.UTC(),
	))
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func fromNullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
