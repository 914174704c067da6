package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to QuoteStatus
		ok       bool
	}{
		{QuoteStatusPending, QuoteStatusQuoted, true},
		{QuoteStatusQuoted, QuoteStatusAccepted, true},
		{QuoteStatusQuoted, QuoteStatusRejected, true},
		{QuoteStatusPending, QuoteStatusExpired, true},
		{QuoteStatusAccepted, QuoteStatusConverted, true},
		{QuoteStatusPending, QuoteStatusConverted, true},
		{QuoteStatusRejected, QuoteStatusConverted, false},
		{QuoteStatusExpired, QuoteStatusQuoted, false},
		{QuoteStatusConverted, QuoteStatusPending, false},
		{QuoteStatusAccepted, QuoteStatusPending, false},
	}
	for _, c := range cases {
		require.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestQuoteStatuses_ConvertibleSet(t *testing.T) {
	var got []QuoteStatus
	for _, s := range QuoteStatuses {
		if CanTransition(s, QuoteStatusConverted) {
			got = append(got, s)
		}
	}
	require.Equal(t, []QuoteStatus{QuoteStatusPending, QuoteStatusQuoted, QuoteStatusAccepted}, got)
}
