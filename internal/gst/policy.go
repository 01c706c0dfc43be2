// Package gst resolves the GST rate applied to an invoice line and splits the
// resulting tax into its CGST, SGST and IGST components.
//
// Once an item has been billed on a tax invoice its rate is fixed to the rate
// of that first occurrence. Later requests for a different rate are rejected,
// never coerced. Items not yet billed stay freely selectable.
package gst

import (
	"github.com/shopspring/decimal"

	"boqledger/internal/ledger"
	"boqledger/pkg/models"
)

// Resolve returns the rate to apply to item on the next invoice.
//
// requested is the rate the caller asked for, nil to accept the default. The
// default is the locked rate when there is one and the BOQ rate otherwise.
// taxInvoiceCount is the number of tax invoices already issued on the project.
func Resolve(item models.BOQItem, state ledger.ItemState, requested *decimal.Decimal, taxInvoiceCount int) (decimal.Decimal, error) {
	if taxInvoiceCount == 0 || !state.Locked() {
		if requested != nil {
			return *requested, nil
		}
		return item.GSTRate, nil
	}

	locked := *state.LockedGSTRate
	if requested != nil && !requested.Equal(locked) {
		return decimal.Zero, &RateLockedError{
			ItemID:    item.ID,
			Locked:    locked,
			Requested: *requested,
			LockedOn:  state.FirstBilledOn,
		}
	}
	return locked, nil
}

// Breakdown is the tax on one line amount.
type Breakdown struct {
	CGST  decimal.Decimal
	SGST  decimal.Decimal
	IGST  decimal.Decimal
	Total decimal.Decimal
}

// Split computes the tax on amount at rate percent, rounded to paise. For
// cgst_sgst the CGST half is rounded and SGST takes the remainder, so the
// components always add up to Total.
func Split(amount, rate decimal.Decimal, gstType models.GSTType) Breakdown {
	total := amount.Mul(rate).Div(hundred).Round(2)
	switch gstType {
	case models.GSTTypeIGST:
		return Breakdown{CGST: decimal.Zero, SGST: decimal.Zero, IGST: total, Total: total}
	default:
		cgst := total.Div(decimal.NewFromInt(2)).Round(2)
		return Breakdown{CGST: cgst, SGST: total.Sub(cgst), IGST: decimal.Zero, Total: total}
	}
}

// None is the breakdown of a tax-free line.
func None() Breakdown {
	return Breakdown{CGST: decimal.Zero, SGST: decimal.Zero, IGST: decimal.Zero, Total: decimal.Zero}
}
