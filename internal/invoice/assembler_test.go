package invoice

import (
	"errors"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"boqledger/internal/gst"
	"boqledger/internal/ledger"
	"boqledger/pkg/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rate(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func testProject() *models.Project {
	return &models.Project{
		ID:   "tower-a",
		Name: "Tower A",
		Client: models.Client{
			Name:          "Acme Builders",
			BillToAddress: "MG Road, Bengaluru, Karnataka",
		},
		Items: []models.BOQItem{
			{ID: "1", Description: "Excavation", Unit: "cum", Quantity: d("100"), Rate: d("500"), GSTRate: d("18")},
			{ID: "2", Description: "PCC 1:4:8", Unit: "cum", Quantity: d("50"), Rate: d("200"), GSTRate: d("18")},
			{ID: "3", Description: "Steel", Unit: "kg", Quantity: d("1000"), Rate: d("72.35"), GSTRate: d("12")},
		},
	}
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC) }
}

func newTestAssembler() *Assembler {
	return NewAssembler().WithClock(fixedClock())
}

func taxOpts() Options { return DefaultOptions(models.InvoiceTypeTaxInvoice) }

func mustAssemble(t *testing.T, a *Assembler, p *models.Project, history []models.Invoice, sel []Selection, opts Options) *models.Invoice {
	t.Helper()
	res, err := a.Assemble(p, history, sel, opts)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if err := VerifyTotals(res.Invoice); err != nil {
		t.Fatalf("VerifyTotals: %v", err)
	}
	return res.Invoice
}

func TestRunningAccountScenario(t *testing.T) {
	a := newTestAssembler()
	p := testProject()

	ra1 := mustAssemble(t, a, p, nil, []Selection{{BOQItemID: "1", Quantity: d("40")}}, taxOpts())
	if ra1.RALabel() != "RA1" {
		t.Errorf("ra_number = %q, want RA1", ra1.RALabel())
	}
	if !ra1.Subtotal.Equal(d("20000")) || !ra1.TotalGSTAmount.Equal(d("3600")) || !ra1.TotalAmount.Equal(d("23600")) {
		t.Errorf("RA1 totals: subtotal=%s gst=%s total=%s", ra1.Subtotal, ra1.TotalGSTAmount, ra1.TotalAmount)
	}
	if !ra1.CGSTAmount.Equal(d("1800")) || !ra1.SGSTAmount.Equal(d("1800")) || !ra1.IGSTAmount.IsZero() {
		t.Errorf("RA1 split: cgst=%s sgst=%s igst=%s", ra1.CGSTAmount, ra1.SGSTAmount, ra1.IGSTAmount)
	}
	history := []models.Invoice{*ra1}

	st, _ := ledger.Compute(p.Items, history).Item("1")
	if !st.Remaining.Equal(d("60")) {
		t.Fatalf("remaining after RA1 = %s, want 60", st.Remaining)
	}

	_, err := a.Assemble(p, history, []Selection{{BOQItemID: "1", Quantity: d("70")}}, taxOpts())
	var exceeded *QuantityExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected QuantityExceededError, got %v", err)
	}
	if exceeded.ItemID != "1" || !exceeded.Requested.Equal(d("70")) || !exceeded.Remaining.Equal(d("60")) {
		t.Errorf("unexpected violation %+v", exceeded)
	}
	if !errors.Is(err, ErrQuantityExceedsRemaining) || !errors.Is(err, ErrValidationFailed) {
		t.Errorf("error %v does not match sentinels", err)
	}

	ra2 := mustAssemble(t, a, p, history, []Selection{{BOQItemID: "1", Quantity: d("60")}}, taxOpts())
	if ra2.RALabel() != "RA2" {
		t.Errorf("ra_number = %q, want RA2", ra2.RALabel())
	}
	history = append(history, *ra2)

	l := ledger.Compute(p.Items, history)
	st, _ = l.Item("1")
	if !st.Remaining.IsZero() || !st.BillingPercentage.Equal(d("100")) {
		t.Errorf("after RA2: remaining=%s pct=%s", st.Remaining, st.BillingPercentage)
	}
}

func TestGSTRateLock(t *testing.T) {
	a := newTestAssembler()
	p := testProject()

	ra1 := mustAssemble(t, a, p, nil, []Selection{{BOQItemID: "1", Quantity: d("10")}}, taxOpts())
	history := []models.Invoice{*ra1}

	_, err := a.Assemble(p, history, []Selection{
		{BOQItemID: "1", Quantity: d("5"), GSTRate: rate("12")},
		{BOQItemID: "2", Quantity: d("5"), GSTRate: rate("12")},
	}, taxOpts())

	var failure *ValidationFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected ValidationFailure, got %v", err)
	}
	if len(failure.Violations) != 1 {
		t.Fatalf("violations = %v, want only the lock on item 1", failure.Violations)
	}
	var lock *gst.RateLockedError
	if !errors.As(err, &lock) || lock.ItemID != "1" || !lock.Locked.Equal(d("18")) || !lock.Requested.Equal(d("12")) {
		t.Fatalf("unexpected lock violation %v", err)
	}

	ra2 := mustAssemble(t, a, p, history, []Selection{
		{BOQItemID: "1", Quantity: d("5")},
		{BOQItemID: "2", Quantity: d("5"), GSTRate: rate("12")},
	}, taxOpts())
	if !ra2.Items[0].GSTRate.Equal(d("18")) || !ra2.Items[1].GSTRate.Equal(d("12")) {
		t.Errorf("RA2 rates = %s, %s", ra2.Items[0].GSTRate, ra2.Items[1].GSTRate)
	}
	history = append(history, *ra2)

	// item 2 is now locked at 12, not at its BOQ default
	ra3 := mustAssemble(t, a, p, history, []Selection{
		{BOQItemID: "3", Quantity: d("1")},
		{BOQItemID: "2", Quantity: d("1")},
		{BOQItemID: "1", Quantity: d("1"), GSTRate: rate("18")},
	}, taxOpts())
	for _, line := range ra3.Items {
		want := map[string]string{"1": "18", "2": "12", "3": "12"}[line.BOQItemID]
		if !line.GSTRate.Equal(d(want)) {
			t.Errorf("item %s rate = %s, want %s", line.BOQItemID, line.GSTRate, want)
		}
	}
}

func TestTaxFreeProforma(t *testing.T) {
	a := newTestAssembler()
	p := testProject()

	opts := DefaultOptions(models.InvoiceTypeProforma)
	opts.IncludeTax = false

	res, err := a.Assemble(p, nil, []Selection{
		{BOQItemID: "1", Quantity: d("10")},
		{BOQItemID: "3", Quantity: d("3.5"), GSTRate: rate("28"), GSTType: models.GSTTypeIGST},
	}, opts)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	inv := res.Invoice
	if !inv.TotalGSTAmount.IsZero() || !inv.TotalAmount.Equal(inv.Subtotal) {
		t.Errorf("tax-free proforma: gst=%s total=%s subtotal=%s", inv.TotalGSTAmount, inv.TotalAmount, inv.Subtotal)
	}
	if !inv.Subtotal.Equal(d("5253.23")) {
		t.Errorf("subtotal = %s, want 5253.23", inv.Subtotal)
	}
	if inv.RANumber != nil {
		t.Errorf("proforma must not carry an RA number, got %s", *inv.RANumber)
	}
	if res.NextRANumber != "RA1" {
		t.Errorf("next RA = %s, want RA1", res.NextRANumber)
	}
	line := inv.Items[1]
	if !line.GSTRate.Equal(d("28")) || line.GSTType != models.GSTTypeIGST || !line.GSTAmount.IsZero() {
		t.Errorf("rate and type must be recorded without tax: %+v", line)
	}
	if inv.IncludeTax {
		t.Error("include_tax should be false")
	}

	// proforma does not consume quantity or the RA series
	st, _ := ledger.Compute(p.Items, []models.Invoice{*inv}).Item("1")
	if !st.Remaining.Equal(d("100")) {
		t.Errorf("remaining after proforma = %s, want 100", st.Remaining)
	}
}

func TestProformaWithTax(t *testing.T) {
	a := newTestAssembler()
	inv := mustAssemble(t, a, testProject(), nil, []Selection{{BOQItemID: "2", Quantity: d("10")}},
		DefaultOptions(models.InvoiceTypeProforma))
	if !inv.TotalGSTAmount.Equal(d("360")) || !inv.TotalAmount.Equal(d("2360")) {
		t.Errorf("proforma with tax: gst=%s total=%s", inv.TotalGSTAmount, inv.TotalAmount)
	}
}

func TestTaxInvoiceIgnoresIncludeTax(t *testing.T) {
	opts := taxOpts()
	opts.IncludeTax = false
	inv := mustAssemble(t, newTestAssembler(), testProject(), nil, []Selection{{BOQItemID: "2", Quantity: d("10")}}, opts)
	if !inv.TotalGSTAmount.Equal(d("360")) || !inv.IncludeTax {
		t.Errorf("tax invoice must carry GST: gst=%s include_tax=%v", inv.TotalGSTAmount, inv.IncludeTax)
	}
}

func TestAssembleViolations(t *testing.T) {
	p := testProject()
	history := []models.Invoice{
		*mustAssemble(t, newTestAssembler(), p, nil, []Selection{{BOQItemID: "2", Quantity: d("45")}}, taxOpts()),
	}

	tests := []struct {
		name       string
		selections []Selection
		opts       func(*Options)
		want       []error
	}{
		{
			name:       "nil selections",
			selections: nil,
			want:       []error{ErrEmptySelection},
		},
		{
			name:       "only zero quantities",
			selections: []Selection{{BOQItemID: "1", Quantity: decimal.Zero}, {BOQItemID: "2", Quantity: decimal.Zero}},
			want:       []error{ErrEmptySelection},
		},
		{
			name: "every violation reported",
			selections: []Selection{
				{BOQItemID: "99", Quantity: d("1")},
				{BOQItemID: "2", Quantity: d("5.5")},
				{BOQItemID: "1", Quantity: d("-2")},
				{BOQItemID: "3", Quantity: d("1")},
				{BOQItemID: "3", Quantity: d("2")},
			},
			want: []error{ErrUnknownBOQItem, ErrQuantityExceedsRemaining, ErrInvalidQuantity, ErrDuplicateSelection},
		},
		{
			name:       "rate out of range",
			selections: []Selection{{BOQItemID: "1", Quantity: d("1"), GSTRate: rate("120")}},
			want:       []error{gst.ErrInvalidRate},
		},
		{
			name:       "non-standard rate in strict mode",
			selections: []Selection{{BOQItemID: "1", Quantity: d("1"), GSTRate: rate("7")}},
			opts:       func(o *Options) { o.StrictRates = true },
			want:       []error{gst.ErrNonStandardRate},
		},
		{
			name:       "locked and exceeded on one item",
			selections: []Selection{{BOQItemID: "2", Quantity: d("6"), GSTRate: rate("5")}},
			want:       []error{ErrQuantityExceedsRemaining, gst.ErrRateLocked},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := taxOpts()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			res, err := newTestAssembler().Assemble(p, history, tt.selections, opts)
			if res != nil {
				t.Fatalf("expected no invoice, got %+v", res.Invoice)
			}
			var failure *ValidationFailure
			if !errors.As(err, &failure) {
				t.Fatalf("expected ValidationFailure, got %v", err)
			}
			if len(failure.Violations) != len(tt.want) {
				t.Fatalf("violations = %v, want %d", failure.Violations, len(tt.want))
			}
			for _, want := range tt.want {
				if !errors.Is(err, want) {
					t.Errorf("missing violation %v in %v", want, err)
				}
			}
			if got := len(failure.Details()); got != len(tt.want) {
				t.Errorf("details = %d, want %d", got, len(tt.want))
			}
		})
	}
}

func TestZeroQuantityIgnored(t *testing.T) {
	inv := mustAssemble(t, newTestAssembler(), testProject(), nil, []Selection{
		{BOQItemID: "1", Quantity: decimal.Zero},
		{BOQItemID: "2", Quantity: d("1")},
	}, taxOpts())
	if len(inv.Items) != 1 || inv.Items[0].BOQItemID != "2" {
		t.Errorf("lines = %+v", inv.Items)
	}
}

func TestInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"missing type", Options{}},
		{"negative advance", Options{InvoiceType: models.InvoiceTypeTaxInvoice, AdvanceReceived: d("-1")}},
		{"bad gst type", Options{InvoiceType: models.InvoiceTypeProforma, DefaultGSTType: "vat"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestAssembler().Assemble(testProject(), nil, []Selection{{BOQItemID: "1", Quantity: d("1")}}, tt.opts)
			if !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("err = %v, want ErrInvalidOptions", err)
			}
		})
	}
}

func TestAdvanceAndIGST(t *testing.T) {
	opts := taxOpts()
	opts.AdvanceReceived = d("50000")
	opts.DefaultGSTType = models.GSTTypeIGST
	opts.PaymentTerms = "30 days"

	inv := mustAssemble(t, newTestAssembler(), testProject(), nil, []Selection{{BOQItemID: "1", Quantity: d("40")}}, opts)
	if !inv.IGSTAmount.Equal(d("3600")) || !inv.CGSTAmount.IsZero() {
		t.Errorf("igst=%s cgst=%s", inv.IGSTAmount, inv.CGSTAmount)
	}
	if !inv.NetAmountDue.IsZero() {
		t.Errorf("net amount due = %s, want 0", inv.NetAmountDue)
	}
	if !inv.AdvanceReceived.Equal(d("50000")) || inv.PaymentTerms != "30 days" {
		t.Errorf("snapshot not recorded: %+v", inv)
	}
	if !inv.InvoiceDate.Equal(fixedClock()()) || inv.Status != models.InvoiceStatusDraft {
		t.Errorf("date=%s status=%s", inv.InvoiceDate, inv.Status)
	}

	opts.AdvanceReceived = d("3600")
	inv = mustAssemble(t, newTestAssembler(), testProject(), nil, []Selection{{BOQItemID: "1", Quantity: d("40")}}, opts)
	if !inv.NetAmountDue.Equal(d("20000")) {
		t.Errorf("net amount due = %s, want 20000", inv.NetAmountDue)
	}
}

func TestConservationUnderRandomRequests(t *testing.T) {
	a := newTestAssembler()
	p := testProject()
	rng := rand.New(rand.NewSource(42))

	var history []models.Invoice
	for i := 0; i < 200; i++ {
		var sel []Selection
		for _, item := range p.Items {
			if rng.Intn(2) == 0 {
				continue
			}
			// up to 30% of the original quantity, in hundredths
			limit := item.Quantity.Mul(d("30")).IntPart() + 1
			qty := decimal.New(rng.Int63n(limit), -2)
			sel = append(sel, Selection{BOQItemID: item.ID, Quantity: qty})
		}
		opts := taxOpts()
		if rng.Intn(4) == 0 {
			opts = DefaultOptions(models.InvoiceTypeProforma)
		}
		res, err := a.Assemble(p, history, sel, opts)
		if err != nil {
			if !errors.Is(err, ErrValidationFailed) {
				t.Fatalf("request %d: unexpected error %v", i, err)
			}
			continue
		}
		history = append(history, *res.Invoice)
	}

	billed := map[string]decimal.Decimal{}
	ra := 0
	for _, inv := range history {
		if !inv.InvoiceType.ConsumesQuantity() {
			continue
		}
		ra++
		if want := "RA" + strconv.Itoa(ra); inv.RALabel() != want {
			t.Fatalf("tax invoice %d labelled %s, want %s", ra, inv.RALabel(), want)
		}
		for _, line := range inv.Items {
			billed[line.BOQItemID] = billed[line.BOQItemID].Add(line.QuantityBilled)
		}
	}
	for _, item := range p.Items {
		if billed[item.ID].GreaterThan(item.Quantity) {
			t.Errorf("item %s over-billed: %s > %s", item.ID, billed[item.ID], item.Quantity)
		}
	}
}

func TestValidateQuantities(t *testing.T) {
	p := testProject()
	history := []models.Invoice{
		*mustAssemble(t, newTestAssembler(), p, nil, []Selection{{BOQItemID: "1", Quantity: d("90")}}, taxOpts()),
	}

	report := ValidateQuantities(p, history, []Selection{
		{BOQItemID: "1", Quantity: d("10")},
		{BOQItemID: "2", Quantity: d("50")},
	})
	if !report.Valid || len(report.Violations) != 0 {
		t.Errorf("expected valid report, got %+v", report)
	}

	report = ValidateQuantities(p, history, []Selection{
		{BOQItemID: "1", Quantity: d("10.5")},
		{BOQItemID: "x", Quantity: d("1")},
	})
	if report.Valid || len(report.Violations) != 2 {
		t.Fatalf("expected two violations, got %+v", report)
	}
	if report.Violations[0].Code != "quantity_exceeds_remaining" || !report.Violations[0].Remaining.Equal(d("10")) {
		t.Errorf("first violation = %+v", report.Violations[0])
	}
	if report.Violations[1].Code != "unknown_boq_item" {
		t.Errorf("second violation = %+v", report.Violations[1])
	}
	if report.Items[0].Valid || !report.Items[0].Remaining.Equal(d("10")) {
		t.Errorf("item check = %+v", report.Items[0])
	}
}

func TestVerifyTotals(t *testing.T) {
	inv := mustAssemble(t, newTestAssembler(), testProject(), nil, []Selection{
		{BOQItemID: "1", Quantity: d("3")},
		{BOQItemID: "3", Quantity: d("7.25")},
	}, taxOpts())

	tampered := *inv
	tampered.TotalAmount = tampered.TotalAmount.Add(d("0.01"))
	if err := VerifyTotals(&tampered); !errors.Is(err, ErrTotalsMismatch) {
		t.Errorf("tampered total: err = %v", err)
	}

	tampered = *inv
	tampered.RANumber = nil
	if err := VerifyTotals(&tampered); err == nil {
		t.Error("tax invoice without RA number should fail")
	}
}

func TestLineAmountUsesItemRate(t *testing.T) {
	inv := mustAssemble(t, newTestAssembler(), testProject(), nil,
		[]Selection{{BOQItemID: "3", Quantity: d("10")}}, taxOpts())

	line := inv.Items[0]
	tests := []struct {
		name      string
		got, want decimal.Decimal
	}{
		{"rate", line.Rate, d("72.35")},
		{"gst_rate", line.GSTRate, d("12")},
		{"amount", line.Amount, d("723.5")},
		{"gst_amount", line.GSTAmount, d("86.82")},
		{"cgst_amount", line.CGSTAmount, d("43.41")},
		{"sgst_amount", line.SGSTAmount, d("43.41")},
		{"total_with_gst", line.TotalWithGST, d("810.32")},
		{"invoice total", inv.TotalAmount, d("810.32")},
	}
	for _, tt := range tests {
		if !tt.got.Equal(tt.want) {
			t.Errorf("%s = %s, want %s", tt.name, tt.got, tt.want)
		}
	}
}

func TestLockedRateReportedBeforeStrictCheck(t *testing.T) {
	a := newTestAssembler()
	p := testProject()
	opts := taxOpts()
	opts.StrictRates = true

	ra1 := mustAssemble(t, a, p, nil, []Selection{{BOQItemID: "1", Quantity: d("10")}}, opts)

	_, err := a.Assemble(p, []models.Invoice{*ra1}, []Selection{{BOQItemID: "1", Quantity: d("10"), GSTRate: rate("13")}}, opts)
	var locked *gst.RateLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("err = %v, want RateLockedError", err)
	}
	if !locked.Locked.Equal(d("18")) || !locked.Requested.Equal(d("13")) {
		t.Errorf("locked = %s requested = %s", locked.Locked, locked.Requested)
	}
	if errors.Is(err, gst.ErrNonStandardRate) {
		t.Error("locked item reported as non-standard rate")
	}
}
