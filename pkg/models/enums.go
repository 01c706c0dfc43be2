package models

import (
	"fmt"
	"strings"
)

// InvoiceType distinguishes advance/quotation documents from RA tax invoices.
type InvoiceType string

const (
	InvoiceTypeProforma   InvoiceType = "proforma"
	InvoiceTypeTaxInvoice InvoiceType = "tax_invoice"
)

// ParseInvoiceType accepts the canonical names case-insensitively.
func ParseInvoiceType(s string) (InvoiceType, error) {
	switch t := InvoiceType(strings.ToLower(strings.TrimSpace(s))); t {
	case InvoiceTypeProforma, InvoiceTypeTaxInvoice:
		return t, nil
	default:
		return "", fmt.Errorf("invalid invoice type %q: must be one of proforma, tax_invoice", s)
	}
}

// ConsumesQuantity reports whether invoices of this type draw down BOQ balances
// and take a number in the RA series. Proforma invoices never do.
func (t InvoiceType) ConsumesQuantity() bool {
	return t == InvoiceTypeTaxInvoice
}

func (t InvoiceType) String() string { return string(t) }

func (t *InvoiceType) UnmarshalText(text []byte) error {
	parsed, err := ParseInvoiceType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// GSTType selects intrastate (CGST+SGST) or interstate (IGST) treatment.
type GSTType string

const (
	GSTTypeCGSTSGST GSTType = "cgst_sgst"
	GSTTypeIGST     GSTType = "igst"
)

// ParseGSTType accepts the canonical names plus the display forms used on
// printed invoices ("CGST+SGST", "IGST").
func ParseGSTType(s string) (GSTType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cgst_sgst", "cgst+sgst":
		return GSTTypeCGSTSGST, nil
	case "igst":
		return GSTTypeIGST, nil
	default:
		return "", fmt.Errorf("invalid GST type %q: must be one of cgst_sgst, igst", s)
	}
}

func (g GSTType) String() string { return string(g) }

func (g *GSTType) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*g = ""
		return nil
	}
	parsed, err := ParseGSTType(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// InvoiceStatus is recorded on the invoice but never drives ledger decisions.
type InvoiceStatus string

const (
	InvoiceStatusDraft    InvoiceStatus = "draft"
	InvoiceStatusSent     InvoiceStatus = "sent"
	InvoiceStatusApproved InvoiceStatus = "approved"
	InvoiceStatusPaid     InvoiceStatus = "paid"
	InvoiceStatusPending  InvoiceStatus = "pending"
)

func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	switch st := InvoiceStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusApproved, InvoiceStatusPaid, InvoiceStatusPending:
		return st, nil
	case "":
		return InvoiceStatusDraft, nil
	default:
		return "", fmt.Errorf("invalid invoice status %q: must be one of draft, sent, approved, paid, pending", s)
	}
}

func (s InvoiceStatus) String() string { return string(s) }

func (s *InvoiceStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseInvoiceStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
