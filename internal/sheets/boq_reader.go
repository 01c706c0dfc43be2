package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"boqledger/internal/logger"
	"boqledger/pkg/models"
)

// DefaultGSTRate is applied to BOQ rows without a GST column.
var DefaultGSTRate = decimal.NewFromInt(18)

// headerScanRows bounds how far down the sheet the header row is searched.
const headerScanRows = 30

// rangeReader is the part of Service the BOQ reader needs.
type rangeReader interface {
	ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error)
}

// BOQReader reads Bill of Quantities items from a worksheet laid out the way
// estimators usually do it: a few title rows, a header row, then one row per item.
type BOQReader struct {
	source rangeReader
	log    zerolog.Logger
}

// NewBOQReader creates a reader over a sheets service
func NewBOQReader(source rangeReader) *BOQReader {
	return &BOQReader{
		source: source,
		log:    logger.WithComponent("boq-reader"),
	}
}

// ReadBOQItems reads all item rows from sheetName.
func (r *BOQReader) ReadBOQItems(ctx context.Context, sheetName string) ([]models.BOQItem, error) {
	const op = "ReadBOQItems"

	r.log.Info().Str("sheet", sheetName).Msg("Reading BOQ items")

	values, err := r.source.ReadRange(ctx, sheetName+"!A:Z")
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read %s sheet: %w", op, sheetName, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s: %s sheet is empty", op, sheetName)
	}

	items, err := ParseBOQRows(values, r.log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.log.Info().
		Int("total_rows", len(values)).
		Int("parsed_items", len(items)).
		Str("sheet", sheetName).
		Msg("BOQ items read successfully")

	return items, nil
}

// boqColumns holds 0-based column indexes; -1 means absent.
type boqColumns struct {
	serial, description, unit, quantity, rate, amount, gst int
}

// ParseBOQRows locates the header row and converts the rows below it into
// BOQ items. Rows without a description of at least three characters, or
// without any positive quantity, rate or amount, are skipped.
func ParseBOQRows(values [][]interface{}, log zerolog.Logger) ([]models.BOQItem, error) {
	headerRow := findHeaderRow(values)
	if headerRow < 0 {
		return nil, fmt.Errorf("no BOQ header row found in the first %d rows", headerScanRows)
	}
	cols := mapColumns(values[headerRow])
	if cols.description < 0 || (cols.quantity < 0 && cols.rate < 0) {
		return nil, fmt.Errorf("header row %d lacks description and quantity/rate columns", headerRow+1)
	}

	var items []models.BOQItem
	seen := map[string]bool{}
	for i, row := range values[headerRow+1:] {
		rowNum := headerRow + i + 2

		description := getString(row, cols.description)
		quantity := parseAmount(getString(row, cols.quantity))
		rate := parseAmount(getString(row, cols.rate))
		amount := parseAmount(getString(row, cols.amount))

		if len(description) < 3 {
			continue
		}
		if !quantity.IsPositive() && !rate.IsPositive() && !amount.IsPositive() {
			log.Debug().Int("row", rowNum).Msg("Skipping BOQ row without quantities")
			continue
		}
		if quantity.IsZero() {
			quantity = decimal.NewFromInt(1)
		}

		id := getString(row, cols.serial)
		if id == "" || seen[id] {
			id = strconv.Itoa(len(items) + 1)
		}
		seen[id] = true

		gstRate := DefaultGSTRate
		if g := getString(row, cols.gst); g != "" {
			if v, err := decimal.NewFromString(strings.TrimSuffix(normalizeNumber(g), "%")); err == nil {
				gstRate = v
			} else {
				log.Warn().Int("row", rowNum).Str("gst", g).Msg("Unparseable GST rate, using default")
			}
		}

		items = append(items, models.BOQItem{
			ID:          id,
			Description: description,
			Unit:        normalizeUnit(getString(row, cols.unit)),
			Quantity:    quantity,
			Rate:        rate,
			GSTRate:     gstRate,
		})
	}

	return items, nil
}

// findHeaderRow returns the index of the first row naming a description
// column plus a quantity or rate column, or -1.
func findHeaderRow(values [][]interface{}) int {
	keywords := []string{"description", "quantity", "qty", "rate", "amount", "item", "particular", "unit", "uom"}
	for i := 0; i < len(values) && i < headerScanRows; i++ {
		cells := make([]string, 0, len(values[i]))
		for j := range values[i] {
			cells = append(cells, strings.ToLower(getString(values[i], j)))
		}
		text := strings.Join(cells, " ")

		matches := 0
		for _, k := range keywords {
			if strings.Contains(text, k) {
				matches++
			}
		}
		hasDescription := containsAny(text, "description", "item", "particular", "work")
		hasQuantity := containsAny(text, "quantity", "qty")
		hasRate := containsAny(text, "rate", "price")
		if matches >= 3 && hasDescription && (hasQuantity || hasRate) {
			return i
		}
	}
	return -1
}

func mapColumns(header []interface{}) boqColumns {
	cols := boqColumns{-1, -1, -1, -1, -1, -1, -1}
	for i := range header {
		h := strings.ToLower(getString(header, i))
		switch {
		case h == "":
		case i <= 1 && containsAny(h, "s.no", "sr.no", "serial", "sl", "sno", "item no"):
			cols.serial = i
		case strings.Contains(h, "gst"):
			cols.gst = i
		case containsAny(h, "description", "item", "particular", "work", "scope") && !containsAny(h, "unit", "rate"):
			cols.description = i
		case containsAny(h, "unit", "uom", "u.o.m") && !containsAny(h, "rate", "price", "amount"):
			cols.unit = i
		case containsAny(h, "qty", "quantity") && !containsAny(h, "rate", "unit"):
			cols.quantity = i
		case containsAny(h, "rate", "price") && !containsAny(h, "amount", "total"):
			if cols.rate < 0 || strings.Contains(h, "unit") {
				cols.rate = i
			}
		case containsAny(h, "amount", "total"):
			cols.amount = i
		}
	}
	return cols
}

var unitAliases = map[string]string{
	"cum": "Cum", "cu.m": "Cum", "cubic meter": "Cum",
	"sqm": "Sqm", "sq.m": "Sqm", "square meter": "Sqm",
	"rmt": "Rmt", "rm": "Rmt", "running meter": "Rmt",
	"nos": "Nos", "no": "Nos", "number": "Nos", "each": "Nos",
	"kg": "Kg", "kilogram": "Kg",
	"ton": "Ton", "tonne": "Ton", "mt": "Ton",
	"ltr": "Ltr", "litre": "Ltr", "liter": "Ltr",
}

// normalizeUnit maps common unit spellings to one form. Numeric cells are
// treated as a misplaced column and fall back to Nos.
func normalizeUnit(unit string) string {
	if unit == "" {
		return "Nos"
	}
	if alias, ok := unitAliases[strings.ToLower(unit)]; ok {
		return alias
	}
	if _, err := strconv.ParseFloat(unit, 64); err == nil {
		return "Nos"
	}
	return unit
}

// normalizeNumber strips currency symbols and thousands separators.
func normalizeNumber(s string) string {
	s = strings.ReplaceAll(s, "₹", "")
	s = strings.ReplaceAll(s, "Rs.", "")
	s = strings.ReplaceAll(s, "Rs", "")
	s = strings.ReplaceAll(s, ",", "")
	return strings.TrimSpace(s)
}

// parseAmount returns zero for empty or unparseable cells.
func parseAmount(s string) decimal.Decimal {
	v, err := decimal.NewFromString(normalizeNumber(s))
	if err != nil {
		return decimal.Zero
	}
	return v
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func getString(row []interface{}, index int) string {
	if index < 0 || index >= len(row) || row[index] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", row[index]))
}
