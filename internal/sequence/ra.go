// Package sequence allocates the per-project Running Account (RA) labels and
// the store-wide invoice numbers.
//
// RA labels are derived purely from the number of prior tax invoices, never from a
// stored ordinal. Two tax invoices can only share a label if creation for a project
// is not serialized, which the store's Locker prevents.
package sequence

import (
	"fmt"
	"strconv"
	"strings"

	"boqledger/pkg/models"
)

// RAPrefix precedes the ordinal in every RA label.
const RAPrefix = "RA"

// CountRA returns how many invoices in history consume the RA sequence.
func CountRA(history []models.Invoice) int {
	n := 0
	for i := range history {
		if history[i].InvoiceType.ConsumesQuantity() {
			n++
		}
	}
	return n
}

// NextRALabel returns the label the next tax invoice will carry: "RA" + (count + 1).
// Proforma invoices may display it but do not reserve it.
func NextRALabel(history []models.Invoice) string {
	return RALabel(CountRA(history) + 1)
}

// RALabel formats an ordinal as an RA label.
func RALabel(ordinal int) string {
	return RAPrefix + strconv.Itoa(ordinal)
}

// ParseRALabel returns the ordinal of a label such as "RA3".
func ParseRALabel(label string) (int, bool) {
	rest, ok := strings.CutPrefix(strings.ToUpper(strings.TrimSpace(label)), RAPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// InvoiceNumber formats the store-wide invoice number, e.g. INV-2025-0007.
func InvoiceNumber(year, seq int) string {
	return fmt.Sprintf("INV-%d-%04d", year, seq)
}
