package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"boqledger/internal/sequence"
	"boqledger/pkg/models"
)

// MemoryStore keeps everything in process memory. Values are copied in and
// out so callers never share slices with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]*models.Project
	invoices []models.Invoice
	byID     map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[string]*models.Project),
		byID:     make(map[string]int),
	}
}

func (s *MemoryStore) CreateProject(_ context.Context, p *models.Project) error {
	const op = "CreateProject"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[p.ID]; ok {
		return fmt.Errorf("%s: %s: %w", op, p.ID, ErrProjectExists)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.projects[p.ID] = copyProject(p)
	return nil
}

func (s *MemoryStore) GetProject(_ context.Context, id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("GetProject: project %s: %w", id, ErrNotFound)
	}
	return copyProject(p), nil
}

func (s *MemoryStore) ListProjects(_ context.Context) ([]models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, *copyProject(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) AppendInvoice(_ context.Context, inv *models.Invoice) error {
	const op = "AppendInvoice"

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[inv.ProjectID]
	if !ok {
		return fmt.Errorf("%s: project %s: %w", op, inv.ProjectID, ErrNotFound)
	}
	if inv.RANumber != nil {
		for i := range s.invoices {
			other := &s.invoices[i]
			if other.ProjectID == inv.ProjectID && other.RALabel() == *inv.RANumber {
				return fmt.Errorf("%s: project %s %s: %w", op, inv.ProjectID, *inv.RANumber, ErrRAConflict)
			}
		}
	}

	inv.ID = uuid.New().String()
	inv.InvoiceNumber = sequence.InvoiceNumber(invoiceYear(inv), len(s.invoices)+1)
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}

	s.byID[inv.ID] = len(s.invoices)
	s.invoices = append(s.invoices, copyInvoice(inv))
	p.AdvanceReceived = p.AdvanceReceived.Add(inv.AdvanceReceived)
	return nil
}

func (s *MemoryStore) GetInvoice(_ context.Context, id string) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("GetInvoice: invoice %s: %w", id, ErrNotFound)
	}
	inv := copyInvoice(&s.invoices[i])
	return &inv, nil
}

func (s *MemoryStore) ListInvoices(_ context.Context, filter InvoiceFilter) ([]models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Invoice
	for i := range s.invoices {
		if filter.match(&s.invoices[i]) {
			out = append(out, copyInvoice(&s.invoices[i]))
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func copyProject(p *models.Project) *models.Project {
	c := *p
	c.Items = append([]models.BOQItem(nil), p.Items...)
	return &c
}

func copyInvoice(inv *models.Invoice) models.Invoice {
	c := *inv
	c.Items = append([]models.InvoiceLineItem(nil), inv.Items...)
	if inv.RANumber != nil {
		ra := *inv.RANumber
		c.RANumber = &ra
	}
	return c
}
