package ledger

import (
	"testing"

	"github.com/shopspring/decimal"

	"boqledger/pkg/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func boq() []models.BOQItem {
	return []models.BOQItem{
		{ID: "1", Description: "Excavation", Unit: "cum", Quantity: d("100"), Rate: d("500"), GSTRate: d("18")},
		{ID: "2", Description: "PCC 1:4:8", Unit: "cum", Quantity: d("50"), Rate: d("200"), GSTRate: d("12")},
	}
}

func line(item string, qty, rate, gstRate string) models.InvoiceLineItem {
	amount := d(qty).Mul(d(rate)).Round(2)
	return models.InvoiceLineItem{
		BOQItemID:      item,
		QuantityBilled: d(qty),
		Rate:           d(rate),
		GSTRate:        d(gstRate),
		GSTType:        models.GSTTypeCGSTSGST,
		Amount:         amount,
	}
}

func taxInvoice(label string, lines ...models.InvoiceLineItem) models.Invoice {
	l := label
	return models.Invoice{InvoiceType: models.InvoiceTypeTaxInvoice, RANumber: &l, Items: lines}
}

func proforma(lines ...models.InvoiceLineItem) models.Invoice {
	return models.Invoice{InvoiceType: models.InvoiceTypeProforma, Items: lines}
}

func TestComputeEmptyHistory(t *testing.T) {
	l := Compute(boq(), nil)

	for _, st := range l.Items {
		if !st.Billed.IsZero() {
			t.Errorf("item %s: billed = %s, want 0", st.Item.ID, st.Billed)
		}
		if !st.Remaining.Equal(st.Item.Quantity) {
			t.Errorf("item %s: remaining = %s, want %s", st.Item.ID, st.Remaining, st.Item.Quantity)
		}
		if !st.CanBill || st.FullyBilled || st.Locked() {
			t.Errorf("item %s: unexpected flags %+v", st.Item.ID, st)
		}
	}
	if !l.Totals.TotalProjectValue.Equal(d("60000")) {
		t.Errorf("total project value = %s, want 60000", l.Totals.TotalProjectValue)
	}
	if !l.Totals.BillingPercentage.IsZero() {
		t.Errorf("billing percentage = %s, want 0", l.Totals.BillingPercentage)
	}
	if l.Totals.NextRANumber != "RA1" {
		t.Errorf("next RA = %s, want RA1", l.Totals.NextRANumber)
	}
}

func TestComputeTaxInvoicesConsumeQuantity(t *testing.T) {
	history := []models.Invoice{
		taxInvoice("RA1", line("1", "40", "500", "18")),
		taxInvoice("RA2", line("1", "60", "500", "18"), line("2", "10", "200", "12")),
	}
	l := Compute(boq(), history)

	item1, _ := l.Item("1")
	if !item1.Billed.Equal(d("100")) || !item1.Remaining.IsZero() {
		t.Errorf("item 1: billed=%s remaining=%s", item1.Billed, item1.Remaining)
	}
	if item1.CanBill || !item1.FullyBilled {
		t.Errorf("item 1 should be fully billed")
	}
	if !item1.BillingPercentage.Equal(d("100")) {
		t.Errorf("item 1 billing percentage = %s", item1.BillingPercentage)
	}
	if !item1.RAUsage["RA1"].Equal(d("40")) || !item1.RAUsage["RA2"].Equal(d("60")) {
		t.Errorf("item 1 RA usage = %v", item1.RAUsage)
	}
	if item1.FirstBilledOn != "RA1" || !item1.LockedGSTRate.Equal(d("18")) {
		t.Errorf("item 1 lock = %v on %s", item1.LockedGSTRate, item1.FirstBilledOn)
	}

	item2, _ := l.Item("2")
	if !item2.Remaining.Equal(d("40")) || !item2.BillingPercentage.Equal(d("20")) {
		t.Errorf("item 2: remaining=%s pct=%s", item2.Remaining, item2.BillingPercentage)
	}

	if !l.Totals.TotalBilledValue.Equal(d("52000")) {
		t.Errorf("billed value = %s, want 52000", l.Totals.TotalBilledValue)
	}
	if !l.Totals.RemainingValue.Equal(d("8000")) {
		t.Errorf("remaining value = %s, want 8000", l.Totals.RemainingValue)
	}
	if !l.Totals.BillingPercentage.Equal(d("86.67")) {
		t.Errorf("billing percentage = %s, want 86.67", l.Totals.BillingPercentage)
	}
	if l.Totals.TaxInvoiceCount != 2 || l.Totals.NextRANumber != "RA3" {
		t.Errorf("counts = %+v", l.Totals)
	}
}

func TestComputeProformaDoesNotConsume(t *testing.T) {
	history := []models.Invoice{
		proforma(line("1", "90", "500", "18")),
		taxInvoice("RA1", line("1", "10", "500", "18")),
		proforma(line("2", "50", "200", "12")),
	}
	l := Compute(boq(), history)

	item1, _ := l.Item("1")
	if !item1.Remaining.Equal(d("90")) {
		t.Errorf("item 1 remaining = %s, want 90", item1.Remaining)
	}
	item2, _ := l.Item("2")
	if item2.Locked() {
		t.Errorf("item 2 must not be locked by a proforma invoice")
	}
	if l.Totals.ProformaCount != 2 || l.Totals.TaxInvoiceCount != 1 {
		t.Errorf("counts = %+v", l.Totals)
	}
	if !l.Totals.TotalBilledValue.Equal(d("5000")) {
		t.Errorf("billed value = %s, want 5000", l.Totals.TotalBilledValue)
	}
}

func TestComputeOverBilledHistoryFloorsRemaining(t *testing.T) {
	history := []models.Invoice{taxInvoice("RA1", line("2", "70", "200", "12"))}
	l := Compute(boq(), history)

	item2, _ := l.Item("2")
	if !item2.Remaining.IsZero() {
		t.Errorf("remaining = %s, want 0", item2.Remaining)
	}
	if !item2.BillingPercentage.Equal(d("140")) {
		t.Errorf("billing percentage = %s, want 140", item2.BillingPercentage)
	}
}

func TestComputeUnlabelledTaxInvoicesUseOrdinal(t *testing.T) {
	history := []models.Invoice{
		{InvoiceType: models.InvoiceTypeTaxInvoice, Items: []models.InvoiceLineItem{line("1", "5", "500", "18")}},
		{InvoiceType: models.InvoiceTypeTaxInvoice, Items: []models.InvoiceLineItem{line("1", "7", "500", "18")}},
	}
	l := Compute(boq(), history)
	item1, _ := l.Item("1")
	if !item1.RAUsage["RA1"].Equal(d("5")) || !item1.RAUsage["RA2"].Equal(d("7")) {
		t.Errorf("RA usage = %v", item1.RAUsage)
	}
}

func TestRemainingIsMonotonic(t *testing.T) {
	steps := []models.Invoice{
		taxInvoice("RA1", line("1", "10", "500", "18")),
		proforma(line("1", "30", "500", "18")),
		taxInvoice("RA2", line("1", "25", "500", "18"), line("2", "5", "200", "12")),
		taxInvoice("RA3", line("2", "45", "200", "12")),
		taxInvoice("RA4", line("1", "65", "500", "18")),
	}

	prev := map[string]decimal.Decimal{}
	for _, item := range boq() {
		prev[item.ID] = item.Quantity
	}
	for n := 1; n <= len(steps); n++ {
		l := Compute(boq(), steps[:n])
		for _, st := range l.Items {
			if st.Remaining.IsNegative() {
				t.Fatalf("step %d item %s: negative remaining %s", n, st.Item.ID, st.Remaining)
			}
			if st.Remaining.GreaterThan(prev[st.Item.ID]) {
				t.Fatalf("step %d item %s: remaining rose from %s to %s", n, st.Item.ID, prev[st.Item.ID], st.Remaining)
			}
			prev[st.Item.ID] = st.Remaining
		}
	}
}

func TestStatusOf(t *testing.T) {
	project := &models.Project{ID: "p1", Name: "Tower A", Items: boq(), AdvanceReceived: d("5000")}
	history := []models.Invoice{taxInvoice("RA1", line("1", "40", "500", "18"))}

	st := StatusOf(project, history)
	if st.ProjectID != "p1" || !st.AdvanceReceived.Equal(d("5000")) {
		t.Errorf("status header = %+v", st)
	}
	if !st.PendingPayment.Equal(d("40000")) {
		t.Errorf("pending payment = %s, want 40000", st.PendingPayment)
	}
	if st.Totals.NextRANumber != "RA2" {
		t.Errorf("next RA = %s", st.Totals.NextRANumber)
	}
}

func TestFullBillingOverManyRAsHasNoRoundingDrift(t *testing.T) {
	items := []models.BOQItem{
		{ID: "1", Description: "Anchor bolts", Unit: "nos", Quantity: d("3"), Rate: d("0.333"), GSTRate: d("18")},
	}
	history := []models.Invoice{
		taxInvoice("RA1", line("1", "1", "0.333", "18")),
		taxInvoice("RA2", line("1", "1", "0.333", "18")),
		taxInvoice("RA3", line("1", "1", "0.333", "18")),
	}

	l := Compute(items, history)
	st, _ := l.Item("1")
	if !st.FullyBilled {
		t.Fatalf("item not fully billed: %+v", st)
	}
	if !l.Totals.TotalBilledValue.Equal(l.Totals.TotalProjectValue) {
		t.Errorf("billed value = %s, project value = %s", l.Totals.TotalBilledValue, l.Totals.TotalProjectValue)
	}
	if !l.Totals.RemainingValue.IsZero() {
		t.Errorf("remaining value = %s, want 0", l.Totals.RemainingValue)
	}
	if !l.Totals.BillingPercentage.Equal(d("100")) {
		t.Errorf("billing percentage = %s, want 100", l.Totals.BillingPercentage)
	}
}
