// Package report aggregates committed invoices into GST summaries.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"boqledger/pkg/models"
)

// RateBreakdown sums invoice lines billed at one GST rate.
type RateBreakdown struct {
	Rate          decimal.Decimal `json:"rate"`
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	GSTAmount     decimal.Decimal `json:"gst_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// MonthBreakdown sums invoices dated in one calendar month.
type MonthBreakdown struct {
	Key           string          `json:"key"` // 2006-01
	Month         string          `json:"month"`
	TotalInvoices int             `json:"total_invoices"`
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	GSTAmount     decimal.Decimal `json:"gst_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// GSTSummary is the tax report over a date range.
type GSTSummary struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`

	TotalInvoices      int             `json:"total_invoices"`
	TotalTaxableAmount decimal.Decimal `json:"total_taxable_amount"`
	TotalCGST          decimal.Decimal `json:"total_cgst_amount"`
	TotalSGST          decimal.Decimal `json:"total_sgst_amount"`
	TotalIGST          decimal.Decimal `json:"total_igst_amount"`
	TotalGSTAmount     decimal.Decimal `json:"total_gst_amount"`
	TotalAmountWithGST decimal.Decimal `json:"total_amount_with_gst"`

	Rates  []RateBreakdown  `json:"gst_breakdown"`
	Months []MonthBreakdown `json:"monthly_breakdown"`
	// Gross amount per invoice type
	ByType map[models.InvoiceType]decimal.Decimal `json:"invoice_type_breakdown"`
}

// GST summarizes invoices, which the caller has already filtered to the
// reporting period. from and to are only echoed into the result.
func GST(invoices []models.Invoice, from, to time.Time) *GSTSummary {
	s := &GSTSummary{
		TotalTaxableAmount: decimal.Zero,
		TotalCGST:          decimal.Zero,
		TotalSGST:          decimal.Zero,
		TotalIGST:          decimal.Zero,
		TotalGSTAmount:     decimal.Zero,
		TotalAmountWithGST: decimal.Zero,
		Rates:              []RateBreakdown{},
		Months:             []MonthBreakdown{},
		ByType: map[models.InvoiceType]decimal.Decimal{
			models.InvoiceTypeProforma:   decimal.Zero,
			models.InvoiceTypeTaxInvoice: decimal.Zero,
		},
	}
	if !from.IsZero() {
		s.From = &from
	}
	if !to.IsZero() {
		s.To = &to
	}

	rates := map[string]*RateBreakdown{}
	months := map[string]*MonthBreakdown{}

	for i := range invoices {
		inv := &invoices[i]
		s.TotalInvoices++
		s.TotalTaxableAmount = s.TotalTaxableAmount.Add(inv.Subtotal)
		s.TotalCGST = s.TotalCGST.Add(inv.CGSTAmount)
		s.TotalSGST = s.TotalSGST.Add(inv.SGSTAmount)
		s.TotalIGST = s.TotalIGST.Add(inv.IGSTAmount)
		s.TotalGSTAmount = s.TotalGSTAmount.Add(inv.TotalGSTAmount)
		s.TotalAmountWithGST = s.TotalAmountWithGST.Add(inv.TotalAmount)
		s.ByType[inv.InvoiceType] = s.ByType[inv.InvoiceType].Add(inv.TotalAmount)

		key := inv.InvoiceDate.Format("2006-01")
		m, ok := months[key]
		if !ok {
			m = &MonthBreakdown{
				Key:           key,
				Month:         inv.InvoiceDate.Format("January 2006"),
				TaxableAmount: decimal.Zero,
				GSTAmount:     decimal.Zero,
				TotalAmount:   decimal.Zero,
			}
			months[key] = m
		}
		m.TotalInvoices++
		m.TaxableAmount = m.TaxableAmount.Add(inv.Subtotal)
		m.GSTAmount = m.GSTAmount.Add(inv.TotalGSTAmount)
		m.TotalAmount = m.TotalAmount.Add(inv.TotalAmount)

		for _, line := range inv.Items {
			// tax-free lines keep their recorded rate but belong to the 0% slab
			slab := line.GSTRate
			if !inv.IncludeTax {
				slab = decimal.Zero
			}
			// 18 and 18.00 are the same slab
			rk := slab.String()
			r, ok := rates[rk]
			if !ok {
				r = &RateBreakdown{Rate: slab, TaxableAmount: decimal.Zero, GSTAmount: decimal.Zero, TotalAmount: decimal.Zero}
				rates[rk] = r
			}
			r.TaxableAmount = r.TaxableAmount.Add(line.Amount)
			r.GSTAmount = r.GSTAmount.Add(line.GSTAmount)
			r.TotalAmount = r.TotalAmount.Add(line.TotalWithGST)
		}
	}

	for _, r := range rates {
		s.Rates = append(s.Rates, *r)
	}
	sort.Slice(s.Rates, func(i, j int) bool { return s.Rates[i].Rate.LessThan(s.Rates[j].Rate) })

	for _, m := range months {
		s.Months = append(s.Months, *m)
	}
	sort.Slice(s.Months, func(i, j int) bool { return s.Months[i].Key < s.Months[j].Key })

	return s
}
