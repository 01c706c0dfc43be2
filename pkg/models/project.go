package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Client struct {
	Name          string `json:"name" yaml:"name"`
	GSTIN         string `json:"gstin,omitempty" yaml:"gstin,omitempty"`
	BillToAddress string `json:"bill_to_address" yaml:"bill_to_address"`
}

// BOQItem is one line of a project's Bill of Quantities. Items are fixed when
// the project is created and never change afterwards.
type BOQItem struct {
	// Serial number, unique within the project
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	Unit        string `json:"unit" yaml:"unit"`

	// Original billable quantity
	Quantity decimal.Decimal `json:"quantity" yaml:"quantity"`
	// Currency per unit
	Rate decimal.Decimal `json:"rate" yaml:"rate"`
	// Percent applied when the first invoice does not choose another rate
	GSTRate decimal.Decimal `json:"gst_rate" yaml:"gst_rate"`
}

// Amount is the item's value at its original quantity.
func (b BOQItem) Amount() decimal.Decimal {
	return b.Quantity.Mul(b.Rate)
}

// Validate checks the fields the ingestion side is expected to guarantee.
func (b BOQItem) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("boq item id is required")
	}
	if strings.TrimSpace(b.Description) == "" {
		return fmt.Errorf("boq item %s: description is required", b.ID)
	}
	if strings.TrimSpace(b.Unit) == "" {
		return fmt.Errorf("boq item %s: unit is required", b.ID)
	}
	if b.Quantity.IsNegative() {
		return fmt.Errorf("boq item %s: quantity must be non-negative", b.ID)
	}
	if b.Rate.IsNegative() {
		return fmt.Errorf("boq item %s: rate must be non-negative", b.ID)
	}
	if b.GSTRate.IsNegative() || b.GSTRate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("boq item %s: gst_rate must be between 0 and 100", b.ID)
	}
	return nil
}

// Project groups a client's BOQ with the cumulative advance collected so far.
type Project struct {
	ID     string    `json:"id" yaml:"id"`
	Name   string    `json:"name" yaml:"name"`
	Client Client    `json:"client" yaml:"client"`
	Items  []BOQItem `json:"boq_items" yaml:"boq_items"`

	// Cumulative advance, increased by every invoice that records one
	AdvanceReceived decimal.Decimal `json:"advance_received" yaml:"advance_received"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at,omitempty"`
}

// TotalValue is the sum of all BOQ item amounts at original quantities.
func (p *Project) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, item := range p.Items {
		total = total.Add(item.Amount())
	}
	return total
}

// Item looks up a BOQ item by id.
func (p *Project) Item(id string) (BOQItem, bool) {
	for _, item := range p.Items {
		if item.ID == id {
			return item, true
		}
	}
	return BOQItem{}, false
}

// Validate checks a project as handed over by BOQ ingestion.
func (p *Project) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("project id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("project %s: name is required", p.ID)
	}
	if len(p.Items) == 0 {
		return fmt.Errorf("project %s: at least one boq item is required", p.ID)
	}
	if p.AdvanceReceived.IsNegative() {
		return fmt.Errorf("project %s: advance_received must be non-negative", p.ID)
	}
	seen := make(map[string]struct{}, len(p.Items))
	for _, item := range p.Items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("project %s: %w", p.ID, err)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("project %s: duplicate boq item id %s", p.ID, item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}
