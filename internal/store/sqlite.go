package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"boqledger/internal/logger"
	"boqledger/internal/sequence"
	"boqledger/pkg/models"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const timeLayout = time.RFC3339Nano

// SQLiteStore is the durable Repository. Decimals are stored as text so no
// amount ever passes through a float.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// OpenSQLite opens (creating if needed) the database at path with WAL mode and
// foreign keys enabled, and applies pending migrations. ":memory:" is accepted.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	const op = "OpenSQLite"
	log := logger.WithComponent("sqlite-store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("%s: creating db directory: %w", op, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%s: opening database: %w", op, err)
	}
	// One connection keeps writes serialized and lets ":memory:" work.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: pinging database: %w", op, err)
	}

	s := &SQLiteStore{db: db, log: log}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info().Str("path", path).Msg("Database connected")
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, migrations)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	for _, r := range results {
		s.log.Info().
			Int64("version", r.Source.Version).
			Str("file", filepath.Base(r.Source.Path)).
			Dur("duration", r.Duration).
			Msg("Applied migration")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateProject(ctx context.Context, p *models.Project) error {
	const op = "CreateProject"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM projects WHERE id = ?)`, p.ID).Scan(&exists); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return fmt.Errorf("%s: %s: %w", op, p.ID, ErrProjectExists)
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, name, client_name, client_gstin, client_address, advance_received, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Client.Name, p.Client.GSTIN, p.Client.BillToAddress,
		p.AdvanceReceived.String(), p.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("%s: inserting project: %w", op, err)
	}

	for i, item := range p.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO boq_items (project_id, position, id, description, unit, quantity, rate, gst_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, i, item.ID, item.Description, item.Unit,
			item.Quantity.String(), item.Rate.String(), item.GSTRate.String())
		if err != nil {
			return fmt.Errorf("%s: inserting boq item %s: %w", op, item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	const op = "GetProject"

	p, err := scanProject(s.db.QueryRowContext(ctx, `
		SELECT id, name, client_name, client_gstin, client_address, advance_received, created_at
		FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: project %s: %w", op, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items, err := s.boqItems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.Items = items
	return p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	const op = "ListProjects"

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, client_name, client_gstin, client_address, advance_received, created_at
		FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		projects = append(projects, *p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := range projects {
		items, err := s.boqItems(ctx, projects[i].ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		projects[i].Items = items
	}
	return projects, nil
}

func (s *SQLiteStore) boqItems(ctx context.Context, projectID string) ([]models.BOQItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, unit, quantity, rate, gst_rate
		FROM boq_items WHERE project_id = ? ORDER BY position`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying boq items: %w", err)
	}
	defer rows.Close()

	var items []models.BOQItem
	for rows.Next() {
		var item models.BOQItem
		if err := rows.Scan(&item.ID, &item.Description, &item.Unit, &item.Quantity, &item.Rate, &item.GSTRate); err != nil {
			return nil, fmt.Errorf("scanning boq item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// AppendInvoice inserts the invoice and its lines and bumps the project's
// advance in a single transaction.
func (s *SQLiteStore) AppendInvoice(ctx context.Context, inv *models.Invoice) error {
	const op = "AppendInvoice"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback()

	var advance decimal.Decimal
	err = tx.QueryRowContext(ctx, `SELECT advance_received FROM projects WHERE id = ?`, inv.ProjectID).Scan(&advance)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: project %s: %w", op, inv.ProjectID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if inv.RANumber != nil {
		var used bool
		err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM invoices WHERE project_id = ? AND ra_number = ?)`,
			inv.ProjectID, *inv.RANumber).Scan(&used)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if used {
			return fmt.Errorf("%s: project %s %s: %w", op, inv.ProjectID, *inv.RANumber, ErrRAConflict)
		}
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices`).Scan(&count); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	id := uuid.New().String()
	number := sequence.InvoiceNumber(invoiceYear(inv), count+1)
	createdAt := inv.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var ra any
	if inv.RANumber != nil {
		ra = *inv.RANumber
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (id, invoice_number, project_id, invoice_type, ra_number, invoice_date, status,
			include_tax, subtotal, cgst_amount, sgst_amount, igst_amount, total_gst_amount, total_amount,
			advance_received, net_amount_due, payment_terms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, number, inv.ProjectID, string(inv.InvoiceType), ra, inv.InvoiceDate.UTC().Format(timeLayout),
		string(inv.Status), inv.IncludeTax,
		inv.Subtotal.String(), inv.CGSTAmount.String(), inv.SGSTAmount.String(), inv.IGSTAmount.String(),
		inv.TotalGSTAmount.String(), inv.TotalAmount.String(),
		inv.AdvanceReceived.String(), inv.NetAmountDue.String(), inv.PaymentTerms,
		createdAt.UTC().Format(timeLayout))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: invoices.project_id, invoices.ra_number") {
			return fmt.Errorf("%s: %w", op, ErrRAConflict)
		}
		return fmt.Errorf("%s: inserting invoice: %w", op, err)
	}

	for i, line := range inv.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO invoice_items (invoice_id, position, boq_item_id, description, unit, quantity, rate,
				gst_rate, gst_type, amount, cgst_amount, sgst_amount, igst_amount, gst_amount, total_with_gst)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, line.BOQItemID, line.Description, line.Unit, line.QuantityBilled.String(), line.Rate.String(),
			line.GSTRate.String(), string(line.GSTType), line.Amount.String(), line.CGSTAmount.String(),
			line.SGSTAmount.String(), line.IGSTAmount.String(), line.GSTAmount.String(), line.TotalWithGST.String())
		if err != nil {
			return fmt.Errorf("%s: inserting line %d: %w", op, i+1, err)
		}
	}

	if !inv.AdvanceReceived.IsZero() {
		_, err = tx.ExecContext(ctx, `UPDATE projects SET advance_received = ? WHERE id = ?`,
			advance.Add(inv.AdvanceReceived).String(), inv.ProjectID)
		if err != nil {
			return fmt.Errorf("%s: updating advance: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}

	inv.ID = id
	inv.InvoiceNumber = number
	inv.CreatedAt = createdAt
	return nil
}

const invoiceColumns = `id, invoice_number, project_id, invoice_type, ra_number, invoice_date, status, include_tax,
	subtotal, cgst_amount, sgst_amount, igst_amount, total_gst_amount, total_amount,
	advance_received, net_amount_due, payment_terms, created_at`

func (s *SQLiteStore) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	const op = "GetInvoice"

	inv, err := scanInvoice(s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: invoice %s: %w", op, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.attachLines(ctx, []*models.Invoice{inv}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return inv, nil
}

func (s *SQLiteStore) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]models.Invoice, error) {
	const op = "ListInvoices"

	var (
		where []string
		args  []any
	)
	if filter.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Type != "" {
		where = append(where, "invoice_type = ?")
		args = append(args, string(filter.Type))
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var invoices []*models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		// dates are stored as text in UTC, so the range is applied here
		if filter.match(inv) {
			invoices = append(invoices, inv)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.attachLines(ctx, invoices); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make([]models.Invoice, len(invoices))
	for i, inv := range invoices {
		out[i] = *inv
	}
	return out, nil
}

func (s *SQLiteStore) attachLines(ctx context.Context, invoices []*models.Invoice) error {
	for _, inv := range invoices {
		rows, err := s.db.QueryContext(ctx, `
			SELECT boq_item_id, description, unit, quantity, rate, gst_rate, gst_type,
				amount, cgst_amount, sgst_amount, igst_amount, gst_amount, total_with_gst
			FROM invoice_items WHERE invoice_id = ? ORDER BY position`, inv.ID)
		if err != nil {
			return fmt.Errorf("querying lines of %s: %w", inv.InvoiceNumber, err)
		}
		for rows.Next() {
			var line models.InvoiceLineItem
			var gstType string
			err := rows.Scan(&line.BOQItemID, &line.Description, &line.Unit, &line.QuantityBilled, &line.Rate,
				&line.GSTRate, &gstType, &line.Amount, &line.CGSTAmount, &line.SGSTAmount, &line.IGSTAmount,
				&line.GSTAmount, &line.TotalWithGST)
			if err != nil {
				rows.Close()
				return fmt.Errorf("scanning line of %s: %w", inv.InvoiceNumber, err)
			}
			line.GSTType = models.GSTType(gstType)
			inv.Items = append(inv.Items, line)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	var createdAt string
	err := row.Scan(&p.ID, &p.Name, &p.Client.Name, &p.Client.GSTIN, &p.Client.BillToAddress,
		&p.AdvanceReceived, &createdAt)
	if err != nil {
		return nil, err
	}
	if p.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at of project %s: %w", p.ID, err)
	}
	return &p, nil
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	var (
		inv                    models.Invoice
		invType, status        string
		ra                     sql.NullString
		invoiceDate, createdAt string
	)
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.ProjectID, &invType, &ra, &invoiceDate, &status,
		&inv.IncludeTax, &inv.Subtotal, &inv.CGSTAmount, &inv.SGSTAmount, &inv.IGSTAmount,
		&inv.TotalGSTAmount, &inv.TotalAmount, &inv.AdvanceReceived, &inv.NetAmountDue,
		&inv.PaymentTerms, &createdAt)
	if err != nil {
		return nil, err
	}
	inv.InvoiceType = models.InvoiceType(invType)
	inv.Status = models.InvoiceStatus(status)
	if ra.Valid {
		label := ra.String
		inv.RANumber = &label
	}
	if inv.InvoiceDate, err = time.Parse(timeLayout, invoiceDate); err != nil {
		return nil, fmt.Errorf("parsing invoice_date of %s: %w", inv.InvoiceNumber, err)
	}
	if inv.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at of %s: %w", inv.InvoiceNumber, err)
	}
	return &inv, nil
}
