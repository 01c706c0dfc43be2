package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"boqledger/internal/invoice"
	"boqledger/internal/ledger"
	"boqledger/internal/report"
	"boqledger/pkg/models"
)

// BillingService is the application surface shared by the CLI and the HTTP API.
type BillingService interface {
	// CreateProject registers a project and its BOQ. The BOQ never changes afterwards.
	CreateProject(ctx context.Context, project *models.Project) (*models.Project, error)
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)

	// Status derives the BOQ billing status from the project's invoice history.
	Status(ctx context.Context, projectID string) (*ledger.Status, error)

	// CreateInvoice assembles an invoice against the current history and, unless
	// DryRun is set, appends it. Validation problems come back as *invoice.ValidationFailure.
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*invoice.Result, error)
	ListInvoices(ctx context.Context, projectID string) ([]models.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*models.Invoice, error)

	// ValidateQuantities checks selections against remaining balances without assembling.
	ValidateQuantities(ctx context.Context, projectID string, selections []invoice.Selection) (*invoice.QuantityReport, error)

	// GSTSummary reports on invoices dated in [from, to). Zero bounds are open.
	GSTSummary(ctx context.Context, from, to time.Time) (*report.GSTSummary, error)
}

// CreateInvoiceRequest is what a caller submits to bill a project.
type CreateInvoiceRequest struct {
	ProjectID   string              `json:"project_id" yaml:"project_id"`
	InvoiceType models.InvoiceType  `json:"invoice_type" yaml:"invoice_type"`
	Selections  []invoice.Selection `json:"selections" yaml:"selections"`

	// Nil means true; only proforma invoices may be tax-free
	IncludeTax *bool `json:"include_tax,omitempty" yaml:"include_tax,omitempty"`

	// Empty uses the configured default terms
	PaymentTerms    string          `json:"payment_terms,omitempty" yaml:"payment_terms,omitempty"`
	AdvanceReceived decimal.Decimal `json:"advance_received" yaml:"advance_received"`
	// Zero means today
	InvoiceDate time.Time            `json:"invoice_date,omitempty" yaml:"invoice_date,omitempty"`
	Status      models.InvoiceStatus `json:"status,omitempty" yaml:"status,omitempty"`

	// DryRun assembles and returns the invoice without storing it.
	DryRun bool `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
}
