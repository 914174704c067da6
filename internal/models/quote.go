package models

import "time"

type QuoteStatus string

const (
	QuoteStatusPending   QuoteStatus = "pending"
	QuoteStatusQuoted    QuoteStatus = "quoted"
	QuoteStatusAccepted  QuoteStatus = "accepted"
	QuoteStatusRejected  QuoteStatus = "rejected"
	QuoteStatusExpired   QuoteStatus = "expired"
	QuoteStatusConverted QuoteStatus = "converted"
)

// QuoteStatuses lists every status in lifecycle order.
var QuoteStatuses = []QuoteStatus{
	QuoteStatusPending, QuoteStatusQuoted, QuoteStatusAccepted,
	QuoteStatusRejected, QuoteStatusExpired, QuoteStatusConverted,
}

type Quote struct {
	ID           uint64
	QuoteNumber  string
	Status       QuoteStatus
	CustomerName *string
	Origin       *string
	Destination  *string
	LoadID       *uint64
	ConvertedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var quoteTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteStatusPending:  {QuoteStatusQuoted, QuoteStatusRejected, QuoteStatusExpired},
	QuoteStatusQuoted:   {QuoteStatusAccepted, QuoteStatusRejected, QuoteStatusExpired},
	QuoteStatusAccepted: {QuoteStatusConverted},
}

// CanTransition reports whether a quote may move from one status to another.
// A load created from a quote converts it from any non-terminal status.
func CanTransition(from, to QuoteStatus) bool {
	if to == QuoteStatusConverted && (from == QuoteStatusPending || from == QuoteStatusQuoted) {
		return true
	}
	for _, s := range quoteTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
