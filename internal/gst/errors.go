package gst

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrRateLocked is returned when a request changes the GST rate of an item
	// that has already been billed on a tax invoice.
	ErrRateLocked = errors.New("gst rate is locked")

	// ErrInvalidRate is returned for rates outside 0..100 percent.
	ErrInvalidRate = errors.New("invalid gst rate")

	// ErrNonStandardRate is returned in strict mode for rates outside the standard slabs.
	ErrNonStandardRate = errors.New("non-standard gst rate")
)

// RateLockedError names the item, the rate it was first billed at and the
// rate the caller asked for.
type RateLockedError struct {
	ItemID    string
	Locked    decimal.Decimal
	Requested decimal.Decimal
	// RA label of the invoice that fixed the rate
	LockedOn string
}

func (e *RateLockedError) Error() string {
	msg := fmt.Sprintf("boq item %s: gst rate locked at %s%%, cannot change to %s%%",
		e.ItemID, e.Locked.String(), e.Requested.String())
	if e.LockedOn != "" {
		msg += " (first billed on " + e.LockedOn + ")"
	}
	return msg
}

func (e *RateLockedError) Unwrap() error { return ErrRateLocked }

// RateError reports a rate rejected by range or slab checks.
type RateError struct {
	ItemID string
	Rate   decimal.Decimal
	Err    error
}

func (e *RateError) Error() string {
	return fmt.Sprintf("boq item %s: %v: %s%%", e.ItemID, e.Err, e.Rate.String())
}

func (e *RateError) Unwrap() error { return e.Err }

func (e *RateError) Is(target error) bool {
	return errors.Is(e.Err, target)
}
