package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"boqledger/pkg/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(amount, rate string) models.InvoiceLineItem {
	a := d(amount)
	tax := a.Mul(d(rate)).Div(d("100")).Round(2)
	return models.InvoiceLineItem{Amount: a, GSTRate: d(rate), GSTAmount: tax, TotalWithGST: a.Add(tax)}
}

func inv(t models.InvoiceType, date time.Time, lines ...models.InvoiceLineItem) models.Invoice {
	out := models.Invoice{InvoiceType: t, InvoiceDate: date, Items: lines, IncludeTax: true,
		Subtotal: decimal.Zero, TotalGSTAmount: decimal.Zero, CGSTAmount: decimal.Zero, SGSTAmount: decimal.Zero, IGSTAmount: decimal.Zero}
	for _, l := range lines {
		out.Subtotal = out.Subtotal.Add(l.Amount)
		out.TotalGSTAmount = out.TotalGSTAmount.Add(l.GSTAmount)
	}
	out.IGSTAmount = out.TotalGSTAmount
	out.TotalAmount = out.Subtotal.Add(out.TotalGSTAmount)
	return out
}

func TestGST(t *testing.T) {
	mar := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	apr := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)

	invoices := []models.Invoice{
		inv(models.InvoiceTypeTaxInvoice, apr, line("20000", "18"), line("1000", "12")),
		inv(models.InvoiceTypeProforma, mar, line("500", "18.00")),
		inv(models.InvoiceTypeTaxInvoice, apr, line("100", "5")),
	}

	s := GST(invoices, time.Time{}, time.Time{})

	if s.TotalInvoices != 3 || !s.TotalTaxableAmount.Equal(d("21600")) {
		t.Errorf("totals: %d invoices, taxable %s", s.TotalInvoices, s.TotalTaxableAmount)
	}
	if !s.TotalGSTAmount.Equal(d("3815")) || !s.TotalAmountWithGST.Equal(d("25415")) {
		t.Errorf("gst=%s gross=%s", s.TotalGSTAmount, s.TotalAmountWithGST)
	}
	if !s.TotalIGST.Equal(s.TotalGSTAmount) {
		t.Errorf("igst = %s", s.TotalIGST)
	}

	if len(s.Rates) != 3 {
		t.Fatalf("rates = %+v", s.Rates)
	}
	wantRates := []struct{ rate, taxable string }{{"5", "100"}, {"12", "1000"}, {"18", "20500"}}
	for i, w := range wantRates {
		if !s.Rates[i].Rate.Equal(d(w.rate)) || !s.Rates[i].TaxableAmount.Equal(d(w.taxable)) {
			t.Errorf("rate %d = %+v, want %s on %s", i, s.Rates[i], w.rate, w.taxable)
		}
	}

	if len(s.Months) != 2 || s.Months[0].Key != "2025-03" || s.Months[1].Month != "April 2025" {
		t.Fatalf("months = %+v", s.Months)
	}
	if s.Months[1].TotalInvoices != 2 {
		t.Errorf("april invoices = %d", s.Months[1].TotalInvoices)
	}

	if !s.ByType[models.InvoiceTypeProforma].Equal(d("590")) {
		t.Errorf("proforma gross = %s", s.ByType[models.InvoiceTypeProforma])
	}
	if s.From != nil || s.To != nil {
		t.Error("zero bounds must be omitted")
	}
}

func TestGSTEmpty(t *testing.T) {
	s := GST(nil, time.Time{}, time.Time{})
	if s.TotalInvoices != 0 || !s.TotalAmountWithGST.IsZero() || len(s.Rates) != 0 || len(s.Months) != 0 {
		t.Errorf("empty summary = %+v", s)
	}
}

func TestGSTTaxFreeLinesUseZeroSlab(t *testing.T) {
	apr := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)

	// billed without tax, the line still records the item's 18%
	untaxed := models.InvoiceLineItem{Amount: d("500"), GSTRate: d("18"), GSTAmount: decimal.Zero, TotalWithGST: d("500")}
	free := inv(models.InvoiceTypeProforma, apr, untaxed)
	free.IncludeTax = false

	invoices := []models.Invoice{
		inv(models.InvoiceTypeTaxInvoice, apr, line("1000", "18")),
		free,
	}

	s := GST(invoices, time.Time{}, time.Time{})

	tests := []struct {
		name                 string
		rate                 string
		taxable, gst, amount string
	}{
		{"tax free", "0", "500", "0", "500"},
		{"taxed", "18", "1000", "180", "1180"},
	}
	if len(s.Rates) != len(tests) {
		t.Fatalf("rates = %+v", s.Rates)
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := s.Rates[i]
			if !r.Rate.Equal(d(tt.rate)) {
				t.Errorf("rate = %s, want %s", r.Rate, tt.rate)
			}
			if !r.TaxableAmount.Equal(d(tt.taxable)) || !r.GSTAmount.Equal(d(tt.gst)) || !r.TotalAmount.Equal(d(tt.amount)) {
				t.Errorf("slab = %+v, want taxable %s gst %s total %s", r, tt.taxable, tt.gst, tt.amount)
			}
		})
	}
}
