// Package store persists projects and their append-only invoice history.
//
// Invoices have no update or delete path. AppendInvoice is the only write on
// an invoice and it also assigns the invoice id and store-wide invoice number
// and adds the invoice's advance to the project's cumulative advance, all in
// one step. Callers serialize appends per project with a Locker; the store
// additionally refuses a second tax invoice with an RA number already used.
package store

import (
	"context"
	"errors"
	"time"

	"boqledger/pkg/models"
)

var (
	// ErrNotFound is returned when a project or invoice does not exist.
	ErrNotFound = errors.New("not found")

	// ErrProjectExists is returned when a project id is already registered.
	ErrProjectExists = errors.New("project already exists")

	// ErrRAConflict is returned when an append would reuse a project's RA number.
	ErrRAConflict = errors.New("ra number already used")
)

// InvoiceFilter narrows ListInvoices. Zero values do not filter.
type InvoiceFilter struct {
	ProjectID string
	// Inclusive lower bound on invoice date
	From time.Time
	// Exclusive upper bound on invoice date
	To time.Time
	Type models.InvoiceType
}

func (f InvoiceFilter) match(inv *models.Invoice) bool {
	if f.ProjectID != "" && inv.ProjectID != f.ProjectID {
		return false
	}
	if !f.From.IsZero() && inv.InvoiceDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !inv.InvoiceDate.Before(f.To) {
		return false
	}
	if f.Type != "" && inv.InvoiceType != f.Type {
		return false
	}
	return true
}

// Repository is the storage collaborator of the billing service.
type Repository interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)

	// AppendInvoice commits inv, filling in ID and InvoiceNumber.
	AppendInvoice(ctx context.Context, inv *models.Invoice) error
	GetInvoice(ctx context.Context, id string) (*models.Invoice, error)
	// ListInvoices returns matching invoices in the order they were appended.
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]models.Invoice, error)

	Close() error
}

// invoiceYear is the year used in an invoice's number.
func invoiceYear(inv *models.Invoice) int {
	if inv.InvoiceDate.IsZero() {
		return time.Now().Year()
	}
	return inv.InvoiceDate.Year()
}
