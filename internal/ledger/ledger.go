// Package ledger folds a project's invoice history into per-item billed and
// remaining quantities and project-level billing totals.
//
// Nothing here is stored. The ledger is recomputed from the immutable invoice
// history on every call, so there is no running counter that can drift.
// Only tax invoices consume quantity; proforma invoices are counted but never
// draw down a balance.
package ledger

import (
	"github.com/shopspring/decimal"

	"boqledger/internal/sequence"
	"boqledger/pkg/models"
)

var hundred = decimal.NewFromInt(100)

// ItemState is the derived billing position of one BOQ item.
type ItemState struct {
	Item models.BOQItem `json:"item"`

	Billed            decimal.Decimal `json:"billed_quantity"`
	Remaining         decimal.Decimal `json:"remaining_quantity"`
	BillingPercentage decimal.Decimal `json:"billing_percentage"`
	CanBill           bool            `json:"can_bill"`
	FullyBilled       bool            `json:"is_fully_billed"`

	// Quantity billed per RA label, e.g. {"RA1": 40, "RA2": 60}
	RAUsage map[string]decimal.Decimal `json:"ra_usage"`

	// Rate used on the item's first tax invoice; nil until the item is billed
	LockedGSTRate *decimal.Decimal `json:"locked_gst_rate,omitempty"`
	FirstBilledOn string           `json:"first_billed_on,omitempty"`
}

// Locked reports whether the item's GST rate is fixed by an earlier tax invoice.
func (s ItemState) Locked() bool {
	return s.LockedGSTRate != nil
}

type Totals struct {
	TotalProjectValue decimal.Decimal `json:"total_project_value"`
	TotalBilledValue  decimal.Decimal `json:"total_billed_value"`
	RemainingValue    decimal.Decimal `json:"remaining_value"`
	BillingPercentage decimal.Decimal `json:"billing_percentage"`

	TaxInvoiceCount int    `json:"tax_invoice_count"`
	ProformaCount   int    `json:"proforma_count"`
	NextRANumber    string `json:"next_ra_number"`
}

// Ledger is the result of Compute. Items keep BOQ order.
type Ledger struct {
	Items  []ItemState `json:"items"`
	Totals Totals      `json:"totals"`

	index map[string]int
}

// Item returns the state of a BOQ item.
func (l *Ledger) Item(id string) (ItemState, bool) {
	i, ok := l.index[id]
	if !ok {
		return ItemState{}, false
	}
	return l.Items[i], true
}

// Compute folds history over the BOQ. It never fails: committed invoices are
// trusted, and lines referencing unknown items only contribute to billed value.
func Compute(items []models.BOQItem, history []models.Invoice) *Ledger {
	l := &Ledger{
		Items: make([]ItemState, len(items)),
		index: make(map[string]int, len(items)),
	}

	totalValue := decimal.Zero
	for i, item := range items {
		l.Items[i] = ItemState{
			Item:    item,
			Billed:  decimal.Zero,
			RAUsage: map[string]decimal.Decimal{},
		}
		l.index[item.ID] = i
		totalValue = totalValue.Add(item.Amount())
	}

	billedValue := decimal.Zero
	raOrdinal := 0
	for _, inv := range history {
		if !inv.InvoiceType.ConsumesQuantity() {
			l.Totals.ProformaCount++
			continue
		}
		raOrdinal++
		l.Totals.TaxInvoiceCount++

		label := inv.RALabel()
		if label == "" {
			label = sequence.RALabel(raOrdinal)
		}

		for _, line := range inv.Items {
			// unrounded, so that billing an item in full always matches its Amount()
			billedValue = billedValue.Add(line.QuantityBilled.Mul(line.Rate))

			i, ok := l.index[line.BOQItemID]
			if !ok {
				continue
			}
			st := &l.Items[i]
			st.Billed = st.Billed.Add(line.QuantityBilled)
			st.RAUsage[label] = st.RAUsage[label].Add(line.QuantityBilled)
			if st.LockedGSTRate == nil {
				rate := line.GSTRate
				st.LockedGSTRate = &rate
				st.FirstBilledOn = label
			}
		}
	}

	for i := range l.Items {
		st := &l.Items[i]
		st.Remaining = floorZero(st.Item.Quantity.Sub(st.Billed))
		st.CanBill = st.Remaining.IsPositive()
		st.FullyBilled = !st.CanBill
		st.BillingPercentage = percentage(st.Billed, st.Item.Quantity)
	}

	l.Totals.TotalProjectValue = totalValue
	l.Totals.TotalBilledValue = billedValue
	l.Totals.RemainingValue = floorZero(totalValue.Sub(billedValue))
	l.Totals.BillingPercentage = percentage(billedValue, totalValue)
	l.Totals.NextRANumber = sequence.RALabel(l.Totals.TaxInvoiceCount + 1)

	return l
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// percentage returns part/whole x 100 rounded to 2 places, 0 for an empty whole.
// Values above 100 are kept; they only arise from inconsistent history.
func percentage(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return floorZero(part.Mul(hundred).DivRound(whole, 4).Round(2))
}
