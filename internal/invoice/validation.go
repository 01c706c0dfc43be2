package invoice

import (
	"fmt"

	"github.com/shopspring/decimal"

	"boqledger/internal/ledger"
	"boqledger/pkg/models"
)

// QuantityCheck is the pre-validation outcome for one selection.
type QuantityCheck struct {
	ItemID    string          `json:"boq_item_id"`
	Requested decimal.Decimal `json:"requested"`
	Remaining decimal.Decimal `json:"remaining"`
	Valid     bool            `json:"valid"`
}

// QuantityReport answers "would these quantities fit" without assembling an
// invoice or resolving GST.
type QuantityReport struct {
	Valid      bool            `json:"valid"`
	Items      []QuantityCheck `json:"items"`
	Violations []Violation     `json:"violations,omitempty"`
}

// ValidateQuantities checks selections against remaining balances only.
func ValidateQuantities(project *models.Project, history []models.Invoice, selections []Selection) *QuantityReport {
	l := ledger.Compute(project.Items, history)
	report := &QuantityReport{Valid: true, Items: make([]QuantityCheck, 0, len(selections))}

	var violations []error
	seen := make(map[string]struct{}, len(selections))
	positive := 0
	for _, sel := range selections {
		check := QuantityCheck{ItemID: sel.BOQItemID, Requested: sel.Quantity, Remaining: decimal.Zero}
		st, known := l.Item(sel.BOQItemID)
		if known {
			check.Remaining = st.Remaining
		}
		_, dup := seen[sel.BOQItemID]

		switch {
		case sel.Quantity.IsNegative():
			q := sel.Quantity
			violations = append(violations, &ItemError{ItemID: sel.BOQItemID, Err: ErrInvalidQuantity, Quantity: &q})
		case sel.Quantity.IsZero():
			check.Valid = true
		case dup:
			positive++
			violations = append(violations, &ItemError{ItemID: sel.BOQItemID, Err: ErrDuplicateSelection})
		case !known:
			positive++
			violations = append(violations, &ItemError{ItemID: sel.BOQItemID, Err: ErrUnknownBOQItem})
		case sel.Quantity.GreaterThan(st.Remaining):
			positive++
			violations = append(violations, &QuantityExceededError{
				ItemID:    sel.BOQItemID,
				Requested: sel.Quantity,
				Remaining: st.Remaining,
			})
		default:
			positive++
			check.Valid = true
		}
		if sel.Quantity.IsPositive() {
			seen[sel.BOQItemID] = struct{}{}
		}
		report.Items = append(report.Items, check)
	}
	if positive == 0 {
		violations = append(violations, ErrEmptySelection)
	}

	if len(violations) > 0 {
		report.Valid = false
		report.Violations = (&ValidationFailure{ProjectID: project.ID, Violations: violations}).Details()
	}
	return report
}

// VerifyTotals recomputes an invoice's amounts from its lines and reports the
// first figure that disagrees. Stored invoices are trusted by the ledger, so
// this runs before an invoice is committed.
func VerifyTotals(inv *models.Invoice) error {
	const op = "VerifyTotals"

	mismatch := func(field string, got, want decimal.Decimal) error {
		return fmt.Errorf("%s: %w: %s is %s, lines give %s", op, ErrTotalsMismatch, field, got.StringFixed(2), want.StringFixed(2))
	}

	sub, cgst, sgst, igst, tax := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for i, line := range inv.Items {
		if !line.QuantityBilled.IsPositive() {
			return fmt.Errorf("%s: line %d (%s): %w", op, i+1, line.BOQItemID, ErrInvalidQuantity)
		}
		if want := line.QuantityBilled.Mul(line.Rate).Round(2); !line.Amount.Equal(want) {
			return mismatch(fmt.Sprintf("line %d amount", i+1), line.Amount, want)
		}
		if parts := line.CGSTAmount.Add(line.SGSTAmount).Add(line.IGSTAmount); !parts.Equal(line.GSTAmount) {
			return mismatch(fmt.Sprintf("line %d gst", i+1), line.GSTAmount, parts)
		}
		if want := line.Amount.Add(line.GSTAmount); !line.TotalWithGST.Equal(want) {
			return mismatch(fmt.Sprintf("line %d total", i+1), line.TotalWithGST, want)
		}
		sub = sub.Add(line.Amount)
		cgst = cgst.Add(line.CGSTAmount)
		sgst = sgst.Add(line.SGSTAmount)
		igst = igst.Add(line.IGSTAmount)
		tax = tax.Add(line.GSTAmount)
	}

	checks := []struct {
		field     string
		got, want decimal.Decimal
	}{
		{"subtotal", inv.Subtotal, sub},
		{"cgst_amount", inv.CGSTAmount, cgst},
		{"sgst_amount", inv.SGSTAmount, sgst},
		{"igst_amount", inv.IGSTAmount, igst},
		{"total_gst_amount", inv.TotalGSTAmount, tax},
		{"total_amount", inv.TotalAmount, sub.Add(tax)},
	}
	for _, c := range checks {
		if !c.got.Equal(c.want) {
			return mismatch(c.field, c.got, c.want)
		}
	}

	if !inv.InvoiceType.ConsumesQuantity() && inv.RANumber != nil {
		return fmt.Errorf("%s: proforma invoice carries RA number %s", op, *inv.RANumber)
	}
	if inv.InvoiceType.ConsumesQuantity() && inv.RANumber == nil {
		return fmt.Errorf("%s: tax invoice has no RA number", op)
	}
	return nil
}
