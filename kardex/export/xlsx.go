/*
Package export renders kardex reports to spreadsheets.

The exporter is a pure consumer of the ledger-row sequence: it never
recomputes costs or balances, it only lays out what the replay produced.
Layout follows the classic kardex sheet: three fixed columns (date, type,
product) and three merged column groups (Entries, Exits, Final
Inventory), each quantity / unit cost / total. Inapplicable cells carry
a dash.
*/
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/almacen/stock-engine/kardex"
)

const sheetName = "Kardex"

const dash = "-"

var groupSpans = []struct {
	title string
	from  string
	to    string
}{
	{"Entries", "D1", "F1"},
	{"Exits", "G1", "I1"},
	{"Final Inventory", "J1", "L1"},
}

var columns = []string{
	"Date", "Type", "Product",
	"Quantity", "Unit Cost", "Total",
	"Quantity", "Unit Cost", "Total",
	"Quantity", "Unit Cost", "Total",
}

// Write renders the report as an xlsx workbook into w.
func Write(report *kardex.Report, w io.Writer) error {
	f, err := Workbook(report)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// Workbook builds the xlsx workbook for the report. The caller owns the
// returned file and must Close it.
func Workbook(report *kardex.Report) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	if err := writeHeader(f); err != nil {
		f.Close()
		return nil, err
	}

	rowIdx := 3
	for _, row := range report.Rows {
		if err := writeRow(f, rowIdx, row); err != nil {
			f.Close()
			return nil, err
		}
		rowIdx++
	}
	for _, total := range report.Totals {
		if err := writeTotal(f, rowIdx, total); err != nil {
			f.Close()
			return nil, err
		}
		rowIdx++
	}
	return f, nil
}

func writeHeader(f *excelize.File) error {
	// First three columns span both header rows.
	for _, span := range []struct{ from, to string }{
		{"A1", "A2"}, {"B1", "B2"}, {"C1", "C2"},
	} {
		if err := f.MergeCell(sheetName, span.from, span.to); err != nil {
			return err
		}
	}
	for _, g := range groupSpans {
		if err := f.MergeCell(sheetName, g.from, g.to); err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, g.from, g.title); err != nil {
			return err
		}
	}
	for i, title := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 2)
		if err != nil {
			return err
		}
		if i < 3 {
			cell, err = excelize.CoordinatesToCellName(i+1, 1)
			if err != nil {
				return err
			}
		}
		if err := f.SetCellValue(sheetName, cell, title); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, idx int, row kardex.Row) error {
	kind := "Purchase"
	if row.Kind == kardex.KindExit {
		kind = "Sale"
	}
	values := []any{row.Date.Format("2006-01-02"), kind, row.Product}
	values = append(values, movementCells(row.Entry)...)
	values = append(values, movementCells(row.Exit)...)
	values = append(values, movementCells(row.Balance)...)
	return setRow(f, idx, values)
}

func writeTotal(f *excelize.File, idx int, total kardex.Total) error {
	values := []any{
		dash, "TOTAL", total.Product,
		dash, dash, dash,
		dash, dash, dash,
		total.Quantity, dash, total.Value.StringFixed(2),
	}
	return setRow(f, idx, values)
}

func movementCells(m *kardex.Movement) []any {
	if m == nil {
		return []any{dash, dash, dash}
	}
	return []any{m.Quantity, m.UnitCost.StringFixed(2), m.Total.StringFixed(2)}
}

func setRow(f *excelize.File, idx int, values []any) error {
	cell := fmt.Sprintf("A%d", idx)
	return f.SetSheetRow(sheetName, cell, &values)
}
