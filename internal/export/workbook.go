// Package export writes resolved tier tables to Excel workbooks.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/posbridge/pricing-service/internal/pricing"
)

// Blueprint is one sheet of the workbook.
type Blueprint struct {
	ID         int
	Name       string
	RuleGroups []pricing.RuleGroup
}

// Columns is the header row of every blueprint sheet.
var Columns = []string{
	"Rule ID", "Rule", "Product Type", "Tier", "Min", "Max", "Price", "Unit",
	"Input Amount", "Input Unit", "Output Amount", "Output Unit", "Multiplier",
}

// maxSheetName is Excel's sheet name length limit.
const maxSheetName = 31

// Workbook builds a workbook with one sheet per blueprint. Blueprints without
// rule groups still get a sheet holding only the header row.
func Workbook(blueprints []Blueprint) (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	used := make(map[string]bool)
	for i, bp := range blueprints {
		name := SheetName(bp, used)
		used[strings.ToLower(name)] = true

		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				f.Close()
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}

		if err := writeSheet(f, name, bp, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// Write builds the workbook and writes it to w.
func Write(w io.Writer, blueprints []Blueprint) error {
	f, err := Workbook(blueprints)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, bp Blueprint, headerStyle int) error {
	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header of %s: %w", sheet, err)
	}
	last, err := excelize.ColumnNumberToName(len(Columns))
	if err != nil {
		return fmt.Errorf("header range of %s: %w", sheet, err)
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", headerStyle); err != nil {
		return fmt.Errorf("style header of %s: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "A", last, 14); err != nil {
		return fmt.Errorf("set column widths of %s: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "B", "B", 28); err != nil {
		return fmt.Errorf("set column widths of %s: %w", sheet, err)
	}

	row := 2
	for _, g := range bp.RuleGroups {
		for _, t := range g.Tiers {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return fmt.Errorf("row %d of %s: %w", row, sheet, err)
			}
			values := tierRow(g, t)
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return fmt.Errorf("write row %d of %s: %w", row, sheet, err)
			}
			row++
		}
	}
	return nil
}

func tierRow(g pricing.RuleGroup, t pricing.Tier) []any {
	var max any = ""
	if t.Max != nil {
		max = *t.Max
	}
	values := []any{g.RuleID, g.RuleName, g.ProductType, t.Label, t.Min, max, t.Price, t.Unit}
	if r := t.ConversionRatio; r != nil {
		return append(values, r.InputAmount, r.InputUnit, r.OutputAmount, r.OutputUnit, r.Multiplier())
	}
	return append(values, "", "", "", "", "")
}

// SheetName returns a unique, Excel-safe sheet name for a blueprint.
func SheetName(bp Blueprint, used map[string]bool) string {
	base := fmt.Sprintf("%d", bp.ID)
	if name := sanitize(bp.Name); name != "" {
		base += " " + name
	}
	base = truncate(base, maxSheetName)

	name := base
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncate(base, maxSheetName-len(suffix)) + suffix
	}
	return name
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
