package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoadStatus string

// Нормализованные статусы груза.
const (
	LoadStatusPending    LoadStatus = "pending"
	LoadStatusAvailable  LoadStatus = "available"
	LoadStatusInTransit  LoadStatus = "in_transit"
	LoadStatusAtPickup   LoadStatus = "at_pickup"
	LoadStatusAtDelivery LoadStatus = "at_delivery"
	LoadStatusDelivered  LoadStatus = "delivered"
	LoadStatusCompleted  LoadStatus = "completed"
	LoadStatusCancelled  LoadStatus = "cancelled"
	LoadStatusOnHold     LoadStatus = "on_hold"
)

// Load is one physical container movement. ContainerNumber is the join key
// with PortPro; TrackingNumber is assigned locally once and never changes.
type Load struct {
	ID              uint64
	TrackingNumber  string
	ContainerNumber string
	ReferenceNumber *string
	PortProID       *string

	Status    LoadStatus
	StatusRaw string

	Origin      *string
	Destination *string

	CustomerName  *string
	ShipperName   *string
	ConsigneeName *string

	ContainerSize  *string
	ContainerType  *string
	ContainerOwner *string
	BookingNumber  *string
	BillOfLading   *string

	Revenue *decimal.Decimal
	Margin  *decimal.Decimal

	LastFreeDay      *time.Time
	PortProUpdatedAt *time.Time
	QuoteID          *uint64

	SyncedAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LoadUpsert carries the mapped upstream fields written on every sync pass.
type LoadUpsert struct {
	ContainerNumber string
	ReferenceNumber *string
	PortProID       *string

	Status    LoadStatus
	StatusRaw string

	Origin      *string
	Destination *string

	CustomerName  *string
	ShipperName   *string
	ConsigneeName *string

	ContainerSize  *string
	ContainerType  *string
	ContainerOwner *string
	BookingNumber  *string
	BillOfLading   *string

	Revenue *decimal.Decimal
	Margin  *decimal.Decimal

	LastFreeDay      *time.Time
	PortProUpdatedAt *time.Time

	SyncedAt time.Time
}
