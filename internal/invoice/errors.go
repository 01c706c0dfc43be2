package invoice

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"boqledger/internal/gst"
)

// Selection and option errors
var (
	// ErrEmptySelection is returned when no selection carries a quantity above zero.
	ErrEmptySelection = errors.New("no line items selected")

	// ErrQuantityExceedsRemaining is returned when a selection asks for more than
	// the item's remaining balance.
	ErrQuantityExceedsRemaining = errors.New("quantity exceeds remaining")

	// ErrUnknownBOQItem is returned when a selection references an item that is
	// not part of the project's BOQ.
	ErrUnknownBOQItem = errors.New("unknown boq item")

	// ErrInvalidQuantity is returned for negative quantities.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrDuplicateSelection is returned when one request lists the same item twice.
	ErrDuplicateSelection = errors.New("duplicate selection")

	// ErrInvalidOptions is returned when the invoice options themselves are unusable.
	ErrInvalidOptions = errors.New("invalid invoice options")

	// ErrValidationFailed matches every *ValidationFailure.
	ErrValidationFailed = errors.New("invoice validation failed")

	// ErrTotalsMismatch is returned by VerifyTotals when stored totals disagree with the lines.
	ErrTotalsMismatch = errors.New("invoice totals mismatch")
)

// QuantityExceededError reports an over-requested item.
type QuantityExceededError struct {
	ItemID    string
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *QuantityExceededError) Error() string {
	return fmt.Sprintf("boq item %s: requested %s exceeds remaining %s",
		e.ItemID, e.Requested.String(), e.Remaining.String())
}

func (e *QuantityExceededError) Unwrap() error { return ErrQuantityExceedsRemaining }

// ItemError ties a sentinel to the item it was raised for.
type ItemError struct {
	ItemID string
	Err    error
	// Quantity is set for ErrInvalidQuantity
	Quantity *decimal.Decimal
}

func (e *ItemError) Error() string {
	if e.Quantity != nil {
		return fmt.Sprintf("boq item %s: %v: %s", e.ItemID, e.Err, e.Quantity.String())
	}
	return fmt.Sprintf("boq item %s: %v", e.ItemID, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

func (e *ItemError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// ValidationFailure collects every violation found in one assembly request.
// Nothing from a failed request may be applied.
type ValidationFailure struct {
	ProjectID  string
	Violations []error
}

func (f *ValidationFailure) Error() string {
	msgs := make([]string, len(f.Violations))
	for i, v := range f.Violations {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("invoice validation failed for project %s: %s", f.ProjectID, strings.Join(msgs, "; "))
}

// Unwrap exposes the individual violations to errors.Is and errors.As.
func (f *ValidationFailure) Unwrap() []error { return f.Violations }

func (f *ValidationFailure) Is(target error) bool {
	return target == ErrValidationFailed
}

// Violation is the serializable form of one violation.
type Violation struct {
	Code      string           `json:"code"`
	ItemID    string           `json:"boq_item_id,omitempty"`
	Message   string           `json:"message"`
	Requested *decimal.Decimal `json:"requested,omitempty"`
	Remaining *decimal.Decimal `json:"remaining,omitempty"`
	Locked    *decimal.Decimal `json:"locked_rate,omitempty"`
}

// Details converts the violations for transport.
func (f *ValidationFailure) Details() []Violation {
	out := make([]Violation, 0, len(f.Violations))
	for _, err := range f.Violations {
		out = append(out, describe(err))
	}
	return out
}

func describe(err error) Violation {
	v := Violation{Code: "invalid", Message: err.Error()}

	var qty *QuantityExceededError
	var lock *gst.RateLockedError
	var rate *gst.RateError
	var item *ItemError
	switch {
	case errors.As(err, &qty):
		v.Code = "quantity_exceeds_remaining"
		v.ItemID = qty.ItemID
		v.Requested = &qty.Requested
		v.Remaining = &qty.Remaining
	case errors.As(err, &lock):
		v.Code = "gst_rate_locked"
		v.ItemID = lock.ItemID
		v.Requested = &lock.Requested
		v.Locked = &lock.Locked
	case errors.As(err, &rate):
		v.Code = "invalid_gst_rate"
		if errors.Is(err, gst.ErrNonStandardRate) {
			v.Code = "non_standard_gst_rate"
		}
		v.ItemID = rate.ItemID
		v.Requested = &rate.Rate
	case errors.As(err, &item):
		v.ItemID = item.ItemID
		v.Requested = item.Quantity
		switch {
		case errors.Is(item.Err, ErrUnknownBOQItem):
			v.Code = "unknown_boq_item"
		case errors.Is(item.Err, ErrInvalidQuantity):
			v.Code = "invalid_quantity"
		case errors.Is(item.Err, ErrDuplicateSelection):
			v.Code = "duplicate_selection"
		}
	case errors.Is(err, ErrEmptySelection):
		v.Code = "empty_selection"
	}
	return v
}
