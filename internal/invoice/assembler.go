package invoice

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"boqledger/internal/gst"
	"boqledger/internal/ledger"
	"boqledger/internal/logger"
	"boqledger/internal/sequence"
	"boqledger/pkg/models"
)

// Assembler turns selections into invoices. It holds no per-project state and
// is safe for concurrent use.
type Assembler struct {
	log zerolog.Logger
	now func() time.Time
}

// NewAssembler creates an assembler using the wall clock.
func NewAssembler() *Assembler {
	return &Assembler{
		log: logger.WithComponent("invoice-assembler"),
		now: time.Now,
	}
}

// WithClock returns a copy of the assembler reading time from now.
func (a *Assembler) WithClock(now func() time.Time) *Assembler {
	c := *a
	c.now = now
	return &c
}

// resolvedLine is a selection that passed validation.
type resolvedLine struct {
	item    models.BOQItem
	qty     decimal.Decimal
	gstRate decimal.Decimal
	gstType models.GSTType
}

// Assemble validates selections against the ledger derived from history and
// returns the computed invoice. The invoice has no ID or invoice number; the
// store assigns those on append.
func (a *Assembler) Assemble(project *models.Project, history []models.Invoice, selections []Selection, opts Options) (*Result, error) {
	const op = "Assemble"

	if err := checkOptions(opts); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	l := ledger.Compute(project.Items, history)
	lines, violations := a.resolve(project, l, selections, opts)
	if len(violations) > 0 {
		a.log.Debug().
			Str("project_id", project.ID).
			Int("violations", len(violations)).
			Msg("Invoice rejected")
		return nil, &ValidationFailure{ProjectID: project.ID, Violations: violations}
	}

	applyTax := opts.InvoiceType.ConsumesQuantity() || opts.IncludeTax
	now := a.now()

	inv := &models.Invoice{
		ProjectID:       project.ID,
		InvoiceType:     opts.InvoiceType,
		InvoiceDate:     opts.InvoiceDate,
		Status:          opts.Status,
		IncludeTax:      applyTax,
		Items:           make([]models.InvoiceLineItem, 0, len(lines)),
		AdvanceReceived: opts.AdvanceReceived,
		PaymentTerms:    opts.PaymentTerms,
		CreatedAt:       now,
	}
	if inv.InvoiceDate.IsZero() {
		inv.InvoiceDate = now
	}
	if inv.Status == "" {
		inv.Status = models.InvoiceStatusDraft
	}

	for _, rl := range lines {
		inv.Items = append(inv.Items, computeLine(rl, applyTax))
	}
	sumTotals(inv)

	if opts.InvoiceType.ConsumesQuantity() {
		label := sequence.NextRALabel(history)
		inv.RANumber = &label
	}

	next := l.Totals.NextRANumber
	if inv.RANumber != nil {
		n, _ := sequence.ParseRALabel(*inv.RANumber)
		next = sequence.RALabel(n + 1)
	}

	a.log.Debug().
		Str("project_id", project.ID).
		Stringer("invoice_type", inv.InvoiceType).
		Str("ra_number", inv.RALabel()).
		Int("lines", len(inv.Items)).
		Str("total_amount", inv.TotalAmount.StringFixed(2)).
		Msg("Invoice assembled")

	return &Result{Invoice: inv, NextRANumber: next}, nil
}

func checkOptions(opts Options) error {
	if _, err := models.ParseInvoiceType(string(opts.InvoiceType)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if opts.AdvanceReceived.IsNegative() {
		return fmt.Errorf("%w: advance_received must be non-negative", ErrInvalidOptions)
	}
	if opts.DefaultGSTType != "" {
		if _, err := models.ParseGSTType(string(opts.DefaultGSTType)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
	}
	return nil
}

// resolve checks every selection and collects all violations.
func (a *Assembler) resolve(project *models.Project, l *ledger.Ledger, selections []Selection, opts Options) ([]resolvedLine, []error) {
	var (
		lines      []resolvedLine
		violations []error
		positive   int
	)
	seen := make(map[string]struct{}, len(selections))

	for _, sel := range selections {
		if sel.Quantity.IsNegative() {
			q := sel.Quantity
			violations = append(violations, &ItemError{ItemID: sel.BOQItemID, Err: ErrInvalidQuantity, Quantity: &q})
			continue
		}
		if sel.Quantity.IsZero() {
			continue
		}
		positive++

		if _, dup := seen[sel.BOQItemID]; dup {
			violations = append(violations, &ItemError{ItemID: sel.BOQItemID, Err: ErrDuplicateSelection})
			continue
		}
		seen[sel.BOQItemID] = struct{}{}

		st, ok := l.Item(sel.BOQItemID)
		if !ok {
			violations = append(violations, &ItemError{ItemID: sel.BOQItemID, Err: ErrUnknownBOQItem})
			continue
		}

		ok = true
		if sel.Quantity.GreaterThan(st.Remaining) {
			violations = append(violations, &QuantityExceededError{
				ItemID:    sel.BOQItemID,
				Requested: sel.Quantity,
				Remaining: st.Remaining,
			})
			ok = false
		}

		rate, err := a.rate(st, sel.GSTRate, l.Totals.TaxInvoiceCount, opts.StrictRates)
		if err != nil {
			violations = append(violations, err)
			ok = false
		}

		if !ok {
			continue
		}

		gstType := sel.GSTType
		if gstType == "" {
			gstType = opts.DefaultGSTType
		}
		if gstType == "" {
			gstType = models.GSTTypeCGSTSGST
		}
		lines = append(lines, resolvedLine{item: st.Item, qty: sel.Quantity, gstRate: rate, gstType: gstType})
	}

	if positive == 0 {
		violations = append(violations, ErrEmptySelection)
	}
	return lines, violations
}

// rate applies the locking rule first, then checks a requested rate, or the
// default the item would get.
func (a *Assembler) rate(st ledger.ItemState, requested *decimal.Decimal, taxInvoices int, strict bool) (decimal.Decimal, error) {
	if st.Locked() {
		return gst.Resolve(st.Item, st, requested, taxInvoices)
	}
	switch {
	case requested != nil:
		if err := gst.CheckRate(st.Item.ID, *requested, strict); err != nil {
			return decimal.Zero, err
		}
	default:
		if err := gst.CheckRate(st.Item.ID, st.Item.GSTRate, strict); err != nil {
			return decimal.Zero, err
		}
	}
	return gst.Resolve(st.Item, st, requested, taxInvoices)
}

func computeLine(rl resolvedLine, applyTax bool) models.InvoiceLineItem {
	amount := rl.qty.Mul(rl.item.Rate).Round(2)
	tax := gst.None()
	if applyTax {
		tax = gst.Split(amount, rl.gstRate, rl.gstType)
	}
	return models.InvoiceLineItem{
		BOQItemID:      rl.item.ID,
		Description:    rl.item.Description,
		Unit:           rl.item.Unit,
		QuantityBilled: rl.qty,
		Rate:           rl.item.Rate,
		GSTRate:        rl.gstRate,
		GSTType:        rl.gstType,
		Amount:         amount,
		CGSTAmount:     tax.CGST,
		SGSTAmount:     tax.SGST,
		IGSTAmount:     tax.IGST,
		GSTAmount:      tax.Total,
		TotalWithGST:   amount.Add(tax.Total),
	}
}

// sumTotals fills the invoice-level amounts from its lines.
func sumTotals(inv *models.Invoice) {
	inv.Subtotal = decimal.Zero
	inv.CGSTAmount = decimal.Zero
	inv.SGSTAmount = decimal.Zero
	inv.IGSTAmount = decimal.Zero
	inv.TotalGSTAmount = decimal.Zero
	for _, line := range inv.Items {
		inv.Subtotal = inv.Subtotal.Add(line.Amount)
		inv.CGSTAmount = inv.CGSTAmount.Add(line.CGSTAmount)
		inv.SGSTAmount = inv.SGSTAmount.Add(line.SGSTAmount)
		inv.IGSTAmount = inv.IGSTAmount.Add(line.IGSTAmount)
		inv.TotalGSTAmount = inv.TotalGSTAmount.Add(line.GSTAmount)
	}
	inv.TotalAmount = inv.Subtotal.Add(inv.TotalGSTAmount)
	inv.NetAmountDue = inv.TotalAmount.Sub(inv.AdvanceReceived)
	if inv.NetAmountDue.IsNegative() {
		inv.NetAmountDue = decimal.Zero
	}
}
