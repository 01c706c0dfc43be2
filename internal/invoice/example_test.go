package invoice_test

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"boqledger/internal/invoice"
	"boqledger/pkg/models"
)

func exampleProject() *models.Project {
	return &models.Project{
		ID:   "villa-12",
		Name: "Villa 12",
		Items: []models.BOQItem{{
			ID:          "1",
			Description: "Brickwork in CM 1:6",
			Unit:        "cum",
			Quantity:    decimal.NewFromInt(100),
			Rate:        decimal.NewFromInt(500),
			GSTRate:     decimal.NewFromInt(18),
		}},
	}
}

// Example shows a first running-account bill.
func Example() {
	assembler := invoice.NewAssembler()

	res, err := assembler.Assemble(exampleProject(), nil,
		[]invoice.Selection{{BOQItemID: "1", Quantity: decimal.NewFromInt(40)}},
		invoice.DefaultOptions(models.InvoiceTypeTaxInvoice))
	if err != nil {
		fmt.Println(err)
		return
	}

	inv := res.Invoice
	fmt.Println("RA number:", inv.RALabel())
	fmt.Println("Subtotal:", inv.Subtotal.StringFixed(2))
	fmt.Println("CGST:", inv.CGSTAmount.StringFixed(2), "SGST:", inv.SGSTAmount.StringFixed(2))
	fmt.Println("Total:", inv.TotalAmount.StringFixed(2))
	fmt.Println("Next:", res.NextRANumber)
	// Output:
	// RA number: RA1
	// Subtotal: 20000.00
	// CGST: 1800.00 SGST: 1800.00
	// Total: 23600.00
	// Next: RA2
}

// ExampleValidationFailure shows how every violation of a request is reported.
func ExampleValidationFailure() {
	assembler := invoice.NewAssembler()
	project := exampleProject()

	first, _ := assembler.Assemble(project, nil,
		[]invoice.Selection{{BOQItemID: "1", Quantity: decimal.NewFromInt(40)}},
		invoice.DefaultOptions(models.InvoiceTypeTaxInvoice))
	history := []models.Invoice{*first.Invoice}

	twelve := decimal.NewFromInt(12)
	_, err := assembler.Assemble(project, history, []invoice.Selection{
		{BOQItemID: "1", Quantity: decimal.NewFromInt(70), GSTRate: &twelve},
		{BOQItemID: "9", Quantity: decimal.NewFromInt(1)},
	}, invoice.DefaultOptions(models.InvoiceTypeTaxInvoice))

	var failure *invoice.ValidationFailure
	if errors.As(err, &failure) {
		for _, v := range failure.Details() {
			fmt.Println(v.Code, v.ItemID)
		}
	}
	// Output:
	// quantity_exceeds_remaining 1
	// gst_rate_locked 1
	// unknown_boq_item 9
}
