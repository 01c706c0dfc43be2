// Package invoice assembles invoice records from a project's BOQ, its invoice
// history and a set of proposed line selections.
//
// Assembly is all-or-nothing. Every selection is checked against the derived
// ledger before anything is computed, and all violations found are returned
// together in a *ValidationFailure so a caller can fix them in one pass.
//
// Rules applied per selection:
//   - quantity must not exceed the item's remaining balance (equality is allowed)
//   - a rate different from the item's locked GST rate is rejected
//   - zero quantities are ignored, negative ones rejected
//   - an item may appear only once per request
//
// Proforma invoices are validated the same way but never consume quantity,
// never take an RA number, and carry no GST when IncludeTax is false.
package invoice

import (
	"time"

	"github.com/shopspring/decimal"

	"boqledger/pkg/models"
)

// Selection proposes billing quantity of one BOQ item.
type Selection struct {
	BOQItemID string          `json:"boq_item_id" yaml:"boq_item_id"`
	Quantity  decimal.Decimal `json:"quantity" yaml:"quantity"`

	// Empty uses Options.DefaultGSTType
	GSTType models.GSTType `json:"gst_type,omitempty" yaml:"gst_type,omitempty"`
	// Nil accepts the locked or BOQ default rate
	GSTRate *decimal.Decimal `json:"gst_rate,omitempty" yaml:"gst_rate,omitempty"`
}

// Options controls how an invoice is assembled.
type Options struct {
	InvoiceType models.InvoiceType

	// IncludeTax is only consulted for proforma invoices; tax invoices always carry GST.
	IncludeTax bool

	PaymentTerms    string
	AdvanceReceived decimal.Decimal

	// Zero means today
	InvoiceDate time.Time
	// Empty means draft
	Status models.InvoiceStatus

	// Applied to selections without a GST type; empty means cgst_sgst
	DefaultGSTType models.GSTType

	// StrictRates rejects rates outside the standard GST slabs.
	StrictRates bool
}

// DefaultOptions returns options for an invoice of type t with tax included.
func DefaultOptions(t models.InvoiceType) Options {
	return Options{
		InvoiceType:     t,
		IncludeTax:      true,
		AdvanceReceived: decimal.Zero,
		Status:          models.InvoiceStatusDraft,
		DefaultGSTType:  models.GSTTypeCGSTSGST,
	}
}

// Result wraps an assembled invoice with the figures a caller typically shows
// next to it.
type Result struct {
	Invoice *models.Invoice `json:"invoice"`
	// RA label the next tax invoice will carry; informational on proforma invoices
	NextRANumber string `json:"next_ra_number"`
}
