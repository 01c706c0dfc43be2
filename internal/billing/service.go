// Package billing wires the ledger, the assembler and the store into the
// invoice workflow: lock the project, load its history, assemble, append.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"boqledger/internal/gst"
	"boqledger/internal/invoice"
	"boqledger/internal/ledger"
	"boqledger/internal/logger"
	"boqledger/internal/report"
	"boqledger/internal/store"
	"boqledger/pkg/models"
	"boqledger/pkg/services"
)

// ErrInvalidRequest is returned for requests rejected before assembly.
var ErrInvalidRequest = errors.New("invalid request")

type Config struct {
	// State whose clients are billed CGST+SGST
	CompanyState        string
	DefaultPaymentTerms string
	StrictRates         bool
	// Upper bound on waiting for a project lock
	LockTimeout time.Duration
}

// Service implements services.BillingService.
type Service struct {
	repo      store.Repository
	locker    store.Locker
	assembler *invoice.Assembler
	cfg       Config
	log       zerolog.Logger
}

var _ services.BillingService = (*Service)(nil)

func NewService(repo store.Repository, locker store.Locker, cfg Config) *Service {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 10 * time.Second
	}
	return &Service{
		repo:      repo,
		locker:    locker,
		assembler: invoice.NewAssembler(),
		cfg:       cfg,
		log:       logger.WithComponent("billing"),
	}
}

// WithAssembler replaces the assembler, e.g. one with a fixed clock.
func (s *Service) WithAssembler(a *invoice.Assembler) *Service {
	s.assembler = a
	return s
}

func (s *Service) CreateProject(ctx context.Context, project *models.Project) (*models.Project, error) {
	const op = "CreateProject"

	if err := project.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidRequest, err)
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info().
		Str("project_id", project.ID).
		Int("boq_items", len(project.Items)).
		Str("total_value", project.TotalValue().StringFixed(2)).
		Msg("Project created")
	return project, nil
}

func (s *Service) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	return s.repo.GetProject(ctx, projectID)
}

func (s *Service) ListProjects(ctx context.Context) ([]models.Project, error) {
	return s.repo.ListProjects(ctx)
}

func (s *Service) Status(ctx context.Context, projectID string) (*ledger.Status, error) {
	const op = "Status"

	project, history, err := s.load(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ledger.StatusOf(project, history), nil
}

func (s *Service) CreateInvoice(ctx context.Context, req services.CreateInvoiceRequest) (*invoice.Result, error) {
	const op = "CreateInvoice"
	log := s.log.With().Str("project_id", req.ProjectID).Stringer("invoice_type", req.InvoiceType).Logger()

	opts, err := s.options(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
	defer cancel()
	unlock, err := s.locker.Lock(lockCtx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer unlock()

	project, history, err := s.load(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if opts.DefaultGSTType == "" {
		placement := gst.TypeForClient(project.Client, s.cfg.CompanyState)
		opts.DefaultGSTType = placement.Type
		log.Debug().
			Str("client_state", placement.ClientState).
			Stringer("gst_type", placement.Type).
			Msg("GST type from client location")
	}

	res, err := s.assembler.Assemble(project, history, req.Selections, opts)
	if err != nil {
		var failure *invoice.ValidationFailure
		if errors.As(err, &failure) {
			log.Warn().Int("violations", len(failure.Violations)).Msg("Invoice rejected")
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := invoice.VerifyTotals(res.Invoice); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if req.DryRun {
		log.Info().Str("total_amount", res.Invoice.TotalAmount.StringFixed(2)).Msg("Dry run, invoice not stored")
		return res, nil
	}

	if err := s.repo.AppendInvoice(ctx, res.Invoice); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info().
		Str("invoice_id", res.Invoice.ID).
		Str("invoice_number", res.Invoice.InvoiceNumber).
		Str("ra_number", res.Invoice.RALabel()).
		Str("total_amount", res.Invoice.TotalAmount.StringFixed(2)).
		Msg("Invoice created")
	return res, nil
}

func (s *Service) options(req services.CreateInvoiceRequest) (invoice.Options, error) {
	if req.ProjectID == "" {
		return invoice.Options{}, fmt.Errorf("%w: project_id is required", ErrInvalidRequest)
	}
	if _, err := models.ParseInvoiceType(string(req.InvoiceType)); err != nil {
		return invoice.Options{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	opts := invoice.DefaultOptions(req.InvoiceType)
	opts.DefaultGSTType = ""
	opts.StrictRates = s.cfg.StrictRates
	opts.AdvanceReceived = req.AdvanceReceived
	opts.InvoiceDate = req.InvoiceDate
	opts.PaymentTerms = req.PaymentTerms
	if opts.PaymentTerms == "" {
		opts.PaymentTerms = s.cfg.DefaultPaymentTerms
	}
	if req.Status != "" {
		opts.Status = req.Status
	}
	if req.IncludeTax != nil {
		if !*req.IncludeTax && req.InvoiceType.ConsumesQuantity() {
			return invoice.Options{}, fmt.Errorf("%w: tax invoices cannot exclude tax", ErrInvalidRequest)
		}
		opts.IncludeTax = *req.IncludeTax
	}
	return opts, nil
}

func (s *Service) ListInvoices(ctx context.Context, projectID string) ([]models.Invoice, error) {
	const op = "ListInvoices"

	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	invoices, err := s.repo.ListInvoices(ctx, store.InvoiceFilter{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return invoices, nil
}

func (s *Service) GetInvoice(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	return s.repo.GetInvoice(ctx, invoiceID)
}

func (s *Service) ValidateQuantities(ctx context.Context, projectID string, selections []invoice.Selection) (*invoice.QuantityReport, error) {
	const op = "ValidateQuantities"

	project, history, err := s.load(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return invoice.ValidateQuantities(project, history, selections), nil
}

func (s *Service) GSTSummary(ctx context.Context, from, to time.Time) (*report.GSTSummary, error) {
	const op = "GSTSummary"

	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return nil, fmt.Errorf("%s: %w: from must be before to", op, ErrInvalidRequest)
	}
	invoices, err := s.repo.ListInvoices(ctx, store.InvoiceFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info().Int("invoices", len(invoices)).Msg("GST summary generated")
	return report.GST(invoices, from, to), nil
}

func (s *Service) load(ctx context.Context, projectID string) (*models.Project, []models.Invoice, error) {
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	history, err := s.repo.ListInvoices(ctx, store.InvoiceFilter{ProjectID: projectID})
	if err != nil {
		return nil, nil, err
	}
	return project, history, nil
}
