package portpro

import (
	"time"

	"github.com/shopspring/decimal"
)

// Load is the strict internal shape of a PortPro load. Empty strings and nil
// pointers mean the upstream field was missing.
type Load struct {
	ID              string
	ReferenceNumber string
	ContainerNo     string
	Status          string

	Customer  *Party
	Shipper   *Party
	Consignee *Party

	ContainerSize  Lookup
	ContainerType  Lookup
	ContainerOwner Lookup

	BookingNo    string
	BillOfLading string

	Revenue   Money
	Expenses  Money
	VendorPay Money
	DriverPay Money

	LastFreeDay *time.Time
	CreatedAt   *time.Time
	UpdatedAt   *time.Time

	DriverOrders []DriverOrder
}

// Party is a customer, shipper or consignee profile.
type Party struct {
	Company string
	Address string
	City    string
	State   string
	ZipCode string
}

// Lookup is a coded value such as container size or owner. PortPro sends
// either a bare string or an object carrying some of label/name/value.
type Lookup struct {
	Label string
	Name  string
	Value string
}

func (l Lookup) IsZero() bool {
	return l.Label == "" && l.Name == "" && l.Value == ""
}

// Money is a flat total and/or itemised amounts.
type Money struct {
	Total *decimal.Decimal
	Items []decimal.Decimal
}

func (m Money) IsZero() bool {
	return m.Total == nil && len(m.Items) == 0
}

// DriverOrder is one container move assigned to a driver.
type DriverOrder struct {
	MoveNumber *int
	Waypoint
	Stops []Waypoint
}

// Waypoint holds the fields shared by a driver order and its stops.
type Waypoint struct {
	Type            string
	Status          string
	Completed       bool
	Arrived         *time.Time
	Departed        *time.Time
	DurationMinutes *int
	Location        *Party
}
