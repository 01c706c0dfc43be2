package sheets

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"boqledger/internal/ledger"
	"boqledger/pkg/models"
)

func TestExtractSpreadsheetID(t *testing.T) {
	id, err := extractSpreadsheetID("https://docs.google.com/spreadsheets/d/1AbC-d_E9/edit#gid=0")
	if err != nil || id != "1AbC-d_E9" {
		t.Errorf("got %q, %v", id, err)
	}
	if _, err := extractSpreadsheetID("https://example.com/sheet"); err == nil {
		t.Error("expected error for non-sheets URL")
	}
}

func TestColumnName(t *testing.T) {
	for n, want := range map[int]string{1: "A", 13: "M", 26: "Z", 27: "AA", 53: "BA"} {
		if got := columnName(n); got != want {
			t.Errorf("columnName(%d) = %s, want %s", n, got, want)
		}
	}
}

func TestStatusRows(t *testing.T) {
	d := decimal.RequireFromString
	project := &models.Project{
		ID:   "p1",
		Name: "Tower A",
		Items: []models.BOQItem{
			{ID: "1", Description: "Excavation", Unit: "cum", Quantity: d("100"), Rate: d("500"), GSTRate: d("18")},
			{ID: "2", Description: "Steel", Unit: "kg", Quantity: d("10"), Rate: d("70"), GSTRate: d("12")},
		},
	}
	ra := func(s string) *string { return &s }
	history := []models.Invoice{}
	for i, qty := range []string{"40", "10", "50"} {
		history = append(history, models.Invoice{
			InvoiceType: models.InvoiceTypeTaxInvoice,
			RANumber:    ra([]string{"RA1", "RA2", "RA10"}[i]),
			Items:       []models.InvoiceLineItem{{BOQItemID: "1", QuantityBilled: d(qty), GSTRate: d("18")}},
		})
	}

	rows := StatusRows(ledger.StatusOf(project, history), time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	if len(rows) != 2 || len(rows[0]) != len(statusHeaders) {
		t.Fatalf("rows = %v", rows)
	}
	if rows[0][10] != "RA1: 40, RA2: 10, RA10: 50" {
		t.Errorf("ra usage = %v", rows[0][10])
	}
	if rows[0][11] != "Fully billed" || rows[1][11] != "Open" {
		t.Errorf("states = %v, %v", rows[0][11], rows[1][11])
	}
	if rows[0][9] != "100.00" || rows[1][6] != "12" {
		t.Errorf("row values = %v / %v", rows[0], rows[1])
	}
	if rows[0][12] != "2025-01-02 03:04:05" {
		t.Errorf("stamp = %v", rows[0][12])
	}
}
