package models

import "github.com/pkg/errors"

// ErrNotFound is returned by storage lookups that match no row.
var ErrNotFound = errors.New("not found")

var ErrInvalidQuoteTransition = errors.New("invalid quote status transition")
