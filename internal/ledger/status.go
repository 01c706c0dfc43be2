package ledger

import (
	"github.com/shopspring/decimal"

	"boqledger/pkg/models"
)

// Status is the BOQ status view of a project: its ledger plus the project's
// advance and pending payment.
type Status struct {
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`

	*Ledger

	AdvanceReceived decimal.Decimal `json:"advance_received"`
	// TotalProjectValue - TotalBilledValue over tax invoices
	PendingPayment decimal.Decimal `json:"pending_payment"`
}

// StatusOf computes the BOQ status of a project from its invoice history.
func StatusOf(project *models.Project, history []models.Invoice) *Status {
	l := Compute(project.Items, history)
	return &Status{
		ProjectID:       project.ID,
		ProjectName:     project.Name,
		Ledger:          l,
		AdvanceReceived: project.AdvanceReceived,
		PendingPayment:  l.Totals.TotalProjectValue.Sub(l.Totals.TotalBilledValue),
	}
}
