package portpro

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Wire types mirror the loosely typed PortPro payload. Each custom unmarshaler
// accepts every shape seen upstream and never fails on bad values: a value it
// cannot read is treated as missing.

var jsonNull = []byte("null")

func isNull(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) == 0 || bytes.Equal(b, jsonNull)
}

type amount struct {
	v *decimal.Decimal
}

func (a *amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if isNull(b) {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		s = strings.TrimPrefix(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), "$")
	}
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	a.v = &d
	return nil
}

func (a amount) intPtr() *int {
	if a.v == nil {
		return nil
	}
	n := int(a.v.IntPart())
	return &n
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type timestamp struct {
	t *time.Time
}

func (ts *timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if isNull(b) {
		return nil
	}
	if b[0] != '"' {
		// epoch milliseconds
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil || f <= 0 {
			return nil
		}
		t := time.UnixMilli(int64(f)).UTC()
		ts.t = &t
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			ts.t = &t
			return nil
		}
	}
	return nil
}

func firstTime(ts ...timestamp) *time.Time {
	for _, t := range ts {
		if t.t != nil {
			return t.t
		}
	}
	return nil
}

type lookup struct {
	l Lookup
}

func (lk *lookup) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if isNull(b) {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			lk.l.Name = strings.TrimSpace(s)
		}
	case '{':
		var o struct {
			Label string          `json:"label"`
			Name  string          `json:"name"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(b, &o); err != nil {
			return nil
		}
		lk.l.Label = strings.TrimSpace(o.Label)
		lk.l.Name = strings.TrimSpace(o.Name)
		lk.l.Value = rawScalar(o.Value)
	default:
		lk.l.Value = rawScalar(b)
	}
	return nil
}

// rawScalar renders a JSON string or number as plain text.
func rawScalar(b json.RawMessage) string {
	b = bytes.TrimSpace(b)
	if isNull(b) {
		return ""
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	if b[0] == '{' || b[0] == '[' {
		return ""
	}
	return string(b)
}

type address struct {
	v string
}

func (a *address) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if isNull(b) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			a.v = strings.TrimSpace(s)
		}
		return nil
	}
	var o struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(b, &o); err == nil {
		a.v = strings.TrimSpace(o.Address)
	}
	return nil
}

type rawParty struct {
	CompanyName string  `json:"company_name"`
	Address     address `json:"address"`
	City        string  `json:"city"`
	State       string  `json:"state"`
	ZipCode     string  `json:"zip_code"`
}

func (p rawParty) toParty() *Party {
	out := &Party{
		Company: strings.TrimSpace(p.CompanyName),
		Address: p.Address.v,
		City:    strings.TrimSpace(p.City),
		State:   strings.TrimSpace(p.State),
		ZipCode: strings.TrimSpace(p.ZipCode),
	}
	if *out == (Party{}) {
		return nil
	}
	return out
}

// partyRef is a profile sent as an object, an array of objects (first one
// wins) or an unpopulated id string.
type partyRef struct {
	p *rawParty
}

func (r *partyRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if isNull(b) {
		return nil
	}
	switch b[0] {
	case '{':
		var p rawParty
		if err := json.Unmarshal(b, &p); err == nil {
			r.p = &p
		}
	case '[':
		var ps []rawParty
		if err := json.Unmarshal(b, &ps); err == nil && len(ps) > 0 {
			r.p = &ps[0]
		}
	}
	return nil
}

func (r partyRef) toParty() *Party {
	if r.p == nil {
		return nil
	}
	return r.p.toParty()
}

type moneyItem struct {
	v *decimal.Decimal
}

func (mi *moneyItem) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if isNull(b) {
		return nil
	}
	if b[0] != '{' {
		var a amount
		_ = a.UnmarshalJSON(b)
		mi.v = a.v
		return nil
	}
	var o struct {
		FinalAmount amount `json:"finalAmount"`
		Amount      amount `json:"amount"`
		Total       amount `json:"total"`
	}
	if err := json.Unmarshal(b, &o); err != nil {
		return nil
	}
	for _, a := range []amount{o.FinalAmount, o.Amount, o.Total} {
		if a.v != nil {
			mi.v = a.v
			return nil
		}
	}
	return nil
}

func itemsOf(items []moneyItem) []decimal.Decimal {
	var out []decimal.Decimal
	for _, it := range items {
		if it.v != nil {
			out = append(out, *it.v)
		}
	}
	return out
}

// costBlock is a cost category: a flat number, an object with a total and/or
// itemised pricing, or a bare array of items.
type costBlock struct {
	m Money
}

func (c *costBlock) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if isNull(b) {
		return nil
	}
	switch b[0] {
	case '[':
		var items []moneyItem
		if err := json.Unmarshal(b, &items); err == nil {
			c.m.Items = itemsOf(items)
		}
	case '{':
		var o struct {
			Total       amount      `json:"total"`
			TotalAmount amount      `json:"totalAmount"`
			Items       []moneyItem `json:"items"`
			Pricing     []moneyItem `json:"pricing"`
		}
		if err := json.Unmarshal(b, &o); err != nil {
			return nil
		}
		c.m.Total = o.Total.v
		if c.m.Total == nil {
			c.m.Total = o.TotalAmount.v
		}
		c.m.Items = append(itemsOf(o.Items), itemsOf(o.Pricing)...)
	default:
		var a amount
		_ = a.UnmarshalJSON(b)
		c.m.Total = a.v
	}
	return nil
}

type rawWaypoint struct {
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	IsCompleted *bool     `json:"isCompleted"`
	Completed   *bool     `json:"completed"`
	Arrived     timestamp `json:"arrived"`
	ArrivedAt   timestamp `json:"arrivedAt"`
	Departed    timestamp `json:"departed"`
	DepartedAt  timestamp `json:"departedAt"`
	Duration    amount    `json:"duration"`
	Customer    partyRef  `json:"customerId"`
	CompanyName string    `json:"company_name"`
	Address     address   `json:"address"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	ZipCode     string    `json:"zip_code"`
}

func (w rawWaypoint) toWaypoint() Waypoint {
	loc := w.Customer.toParty()
	if loc == nil {
		loc = rawParty{
			CompanyName: w.CompanyName,
			Address:     w.Address,
			City:        w.City,
			State:       w.State,
			ZipCode:     w.ZipCode,
		}.toParty()
	}
	return Waypoint{
		Type:            strings.ToUpper(strings.TrimSpace(w.Type)),
		Status:          strings.TrimSpace(w.Status),
		Completed:       (w.IsCompleted != nil && *w.IsCompleted) || (w.Completed != nil && *w.Completed),
		Arrived:         firstTime(w.Arrived, w.ArrivedAt),
		Departed:        firstTime(w.Departed, w.DepartedAt),
		DurationMinutes: w.Duration.intPtr(),
		Location:        loc,
	}
}

type rawDriverOrder struct {
	rawWaypoint
	MoveNumber amount        `json:"moveNumber"`
	Moves      []rawWaypoint `json:"moves"`
}

type rawLoad struct {
	ID                  string           `json:"_id"`
	ReferenceNumber     string           `json:"reference_number"`
	ContainerNo         string           `json:"containerNo"`
	Status              string           `json:"status"`
	Caller              partyRef         `json:"caller"`
	Shipper             partyRef         `json:"shipper"`
	Consignee           partyRef         `json:"consignee"`
	ContainerSize       lookup           `json:"containerSize"`
	ContainerType       lookup           `json:"containerType"`
	ContainerOwner      lookup           `json:"containerOwner"`
	BookingNo           string           `json:"bookingNo"`
	CallerBillLandingNo string           `json:"callerbillLandingNo"`
	BillOfLading        string           `json:"billOfLading"`
	TotalAmount         amount           `json:"totalAmount"`
	Pricing             []moneyItem      `json:"pricing"`
	Expenses            costBlock        `json:"expenses"`
	VendorPay           costBlock        `json:"vendorPay"`
	DriverPay           costBlock        `json:"driverPay"`
	LastFreeDay         timestamp        `json:"lastFreeDay"`
	CreatedAt           timestamp        `json:"createdAt"`
	UpdatedAt           timestamp        `json:"updatedAt"`
	DriverOrder         []rawDriverOrder `json:"driverOrder"`
}

func (r rawLoad) toLoad() Load {
	bol := strings.TrimSpace(r.BillOfLading)
	if bol == "" {
		bol = strings.TrimSpace(r.CallerBillLandingNo)
	}
	l := Load{
		ID:              strings.TrimSpace(r.ID),
		ReferenceNumber: strings.TrimSpace(r.ReferenceNumber),
		ContainerNo:     strings.ToUpper(strings.TrimSpace(r.ContainerNo)),
		Status:          strings.TrimSpace(r.Status),
		Customer:        r.Caller.toParty(),
		Shipper:         r.Shipper.toParty(),
		Consignee:       r.Consignee.toParty(),
		ContainerSize:   r.ContainerSize.l,
		ContainerType:   r.ContainerType.l,
		ContainerOwner:  r.ContainerOwner.l,
		BookingNo:       strings.TrimSpace(r.BookingNo),
		BillOfLading:    bol,
		Revenue:         Money{Total: r.TotalAmount.v, Items: itemsOf(r.Pricing)},
		Expenses:        r.Expenses.m,
		VendorPay:       r.VendorPay.m,
		DriverPay:       r.DriverPay.m,
		LastFreeDay:     r.LastFreeDay.t,
		CreatedAt:       r.CreatedAt.t,
		UpdatedAt:       r.UpdatedAt.t,
	}
	for _, o := range r.DriverOrder {
		do := DriverOrder{
			MoveNumber: o.MoveNumber.intPtr(),
			Waypoint:   o.rawWaypoint.toWaypoint(),
		}
		for _, m := range o.Moves {
			do.Stops = append(do.Stops, m.toWaypoint())
		}
		l.DriverOrders = append(l.DriverOrders, do)
	}
	return l
}

// DecodeLoad decodes a single PortPro load object.
func DecodeLoad(data []byte) (Load, error) {
	var r rawLoad
	if err := json.Unmarshal(data, &r); err != nil {
		return Load{}, errors.Wrap(err, "decode portpro load")
	}
	return r.toLoad(), nil
}

// DecodePage decodes a loads response. PortPro answers with either
// {"data":[...],"count":N} or a bare array.
func DecodePage(data []byte) (Page, error) {
	data = bytes.TrimSpace(data)
	if isNull(data) {
		return Page{}, nil
	}

	var raws []rawLoad
	var count int
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raws); err != nil {
			return Page{}, errors.Wrap(err, "decode portpro loads")
		}
	} else {
		var env struct {
			Data  []rawLoad `json:"data"`
			Loads []rawLoad `json:"loads"`
			Count amount    `json:"count"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			return Page{}, errors.Wrap(err, "decode portpro loads")
		}
		raws = env.Data
		if raws == nil {
			raws = env.Loads
		}
		if n := env.Count.intPtr(); n != nil {
			count = *n
		}
	}

	page := Page{Count: count, Loads: make([]Load, 0, len(raws))}
	for _, r := range raws {
		page.Loads = append(page.Loads, r.toLoad())
	}
	return page, nil
}
