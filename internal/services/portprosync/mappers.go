package portprosync

import (
	"strings"

	"github.com/abakymuk/nsl-sub001/internal/integrations/portpro"
	"github.com/abakymuk/nsl-sub001/internal/models"
	"github.com/shopspring/decimal"
)

// PortPro load statuses, upper-cased. Anything unknown maps to nil.
var statusMap = map[string]models.LoadStatus{
	"PENDING":                     models.LoadStatusPending,
	"NEW":                         models.LoadStatusPending,
	"AVAILABLE":                   models.LoadStatusAvailable,
	"DEPARTED":                    models.LoadStatusInTransit,
	"DISPATCHED":                  models.LoadStatusInTransit,
	"IN_PROGRESS":                 models.LoadStatusInTransit,
	"ENROUTE_TO_PICK_CONTAINER":   models.LoadStatusInTransit,
	"ENROUTE_TO_DELIVERLOAD":      models.LoadStatusInTransit,
	"ENROUTE_TO_DROP_CONTAINER":   models.LoadStatusInTransit,
	"ENROUTE_TO_HOOK_CONTAINER":   models.LoadStatusInTransit,
	"ENROUTE_TO_RETURN_CONTAINER": models.LoadStatusInTransit,
	"DROPCONTAINER_DEPARTED":      models.LoadStatusInTransit,
	"ARRIVED_PICK_CONTAINER":      models.LoadStatusAtPickup,
	"ARRIVED_HOOK_CONTAINER":      models.LoadStatusAtPickup,
	"ARRIVED_DELIVERLOAD":         models.LoadStatusAtDelivery,
	"ARRIVED_DROP_CONTAINER":      models.LoadStatusAtDelivery,
	"DELIVERED":                   models.LoadStatusDelivered,
	"ARRIVED_RETURN_CONTAINER":    models.LoadStatusDelivered,
	"COMPLETED":                   models.LoadStatusCompleted,
	"BILLING":                     models.LoadStatusCompleted,
	"APPROVED":                    models.LoadStatusCompleted,
	"CANCELLED":                   models.LoadStatusCancelled,
	"CANCELED":                    models.LoadStatusCancelled,
	"ON_HOLD":                     models.LoadStatusOnHold,
	"HOLD":                        models.LoadStatusOnHold,
}

// MapStatus converts a PortPro status into the local enum.
func MapStatus(raw string) *models.LoadStatus {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	st, ok := statusMap[key]
	if !ok {
		return nil
	}
	return &st
}

// FormatLocation renders "Company, street, City, ST ZIP" from whatever parts
// are present.
func FormatLocation(p *portpro.Party) *string {
	if p == nil {
		return nil
	}
	var parts []string
	for _, s := range []string{p.Company, p.Address, p.City} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	region := strings.TrimSpace(strings.TrimSpace(p.State) + " " + strings.TrimSpace(p.ZipCode))
	if region != "" {
		parts = append(parts, region)
	}
	if len(parts) == 0 {
		return nil
	}
	s := strings.Join(parts, ", ")
	return &s
}

// ExtractLookupValue prefers the label, then the name, then the raw value.
func ExtractLookupValue(l portpro.Lookup) *string {
	for _, s := range []string{l.Label, l.Name, l.Value} {
		if s = strings.TrimSpace(s); s != "" {
			return &s
		}
	}
	return nil
}

// CalculateMargin is revenue minus expenses, vendor pay and driver pay.
// Unknown revenue gives nil; a missing cost category counts as zero.
func CalculateMargin(l portpro.Load) *decimal.Decimal {
	revenue := moneyTotal(l.Revenue)
	if revenue == nil {
		return nil
	}
	margin := *revenue
	for _, m := range []portpro.Money{l.Expenses, l.VendorPay, l.DriverPay} {
		if c := moneyTotal(m); c != nil {
			margin = margin.Sub(*c)
		}
	}
	return &margin
}

// moneyTotal takes the flat total first and falls back to summing items.
func moneyTotal(m portpro.Money) *decimal.Decimal {
	if m.Total != nil {
		t := *m.Total
		return &t
	}
	if len(m.Items) == 0 {
		return nil
	}
	sum := decimal.Zero
	for _, it := range m.Items {
		sum = sum.Add(it)
	}
	return &sum
}

// partyName is the display name stored on the load.
func partyName(p *portpro.Party) *string {
	if p == nil {
		return nil
	}
	return strPtr(p.Company)
}

func strPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
