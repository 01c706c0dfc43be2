package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceLineItem bills part of one BOQ item. Rate and GST rate are snapshots
// taken when the invoice was assembled.
type InvoiceLineItem struct {
	BOQItemID   string `json:"boq_item_id" yaml:"boq_item_id"`
	Description string `json:"description" yaml:"description"`
	Unit        string `json:"unit" yaml:"unit"`

	QuantityBilled decimal.Decimal `json:"quantity_billed" yaml:"quantity_billed"`
	Rate           decimal.Decimal `json:"rate" yaml:"rate"`
	GSTRate        decimal.Decimal `json:"gst_rate" yaml:"gst_rate"`
	GSTType        GSTType         `json:"gst_type" yaml:"gst_type"`

	// Amounts (2 decimal places)
	Amount       decimal.Decimal `json:"amount" yaml:"amount"`             // QuantityBilled x Rate
	CGSTAmount   decimal.Decimal `json:"cgst_amount" yaml:"cgst_amount"`   // Half of GSTAmount for cgst_sgst
	SGSTAmount   decimal.Decimal `json:"sgst_amount" yaml:"sgst_amount"`   // Remainder of GSTAmount for cgst_sgst
	IGSTAmount   decimal.Decimal `json:"igst_amount" yaml:"igst_amount"`   // All of GSTAmount for igst
	GSTAmount    decimal.Decimal `json:"gst_amount" yaml:"gst_amount"`     // Zero on tax-free proforma
	TotalWithGST decimal.Decimal `json:"total_with_gst" yaml:"total_with_gst"`
}

// Invoice is append-only: once stored it is never edited or removed.
// Corrections are made by issuing a new invoice.
type Invoice struct {
	// Core identifiers, assigned by the store on append
	ID            string `json:"id" yaml:"id"`
	InvoiceNumber string `json:"invoice_number" yaml:"invoice_number"`

	ProjectID   string      `json:"project_id" yaml:"project_id"`
	InvoiceType InvoiceType `json:"invoice_type" yaml:"invoice_type"`
	// Only set on tax invoices
	RANumber    *string       `json:"ra_number" yaml:"ra_number"`
	InvoiceDate time.Time     `json:"invoice_date" yaml:"invoice_date"`
	Status      InvoiceStatus `json:"status" yaml:"status"`
	IncludeTax  bool          `json:"include_tax" yaml:"include_tax"`

	Items []InvoiceLineItem `json:"items" yaml:"items"`

	Subtotal       decimal.Decimal `json:"subtotal" yaml:"subtotal"`
	CGSTAmount     decimal.Decimal `json:"cgst_amount" yaml:"cgst_amount"`
	SGSTAmount     decimal.Decimal `json:"sgst_amount" yaml:"sgst_amount"`
	IGSTAmount     decimal.Decimal `json:"igst_amount" yaml:"igst_amount"`
	TotalGSTAmount decimal.Decimal `json:"total_gst_amount" yaml:"total_gst_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount" yaml:"total_amount"`

	// Snapshot of the advance recorded with this invoice
	AdvanceReceived decimal.Decimal `json:"advance_received" yaml:"advance_received"`
	// Informational: TotalAmount - AdvanceReceived, never below zero
	NetAmountDue decimal.Decimal `json:"net_amount_due" yaml:"net_amount_due"`
	PaymentTerms string          `json:"payment_terms" yaml:"payment_terms"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// RALabel returns the RA number or "" for invoices outside the RA series.
func (i *Invoice) RALabel() string {
	if i.RANumber == nil {
		return ""
	}
	return *i.RANumber
}
