package summary

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Cosinor"

// WriteXLSX saves the table as a single-sheet workbook. NaN cells are left empty.
func (t *Table) WriteXLSX(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for j, h := range Columns {
		cell, err := excelize.CoordinatesToCellName(j+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(sheetName, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for i, r := range t.Rows {
		row := i + 2
		if err := f.SetCellStr(sheetName, fmt.Sprintf("A%d", row), r.Gene); err != nil {
			return fmt.Errorf("write gene %s: %w", r.Gene, err)
		}
		for j, v := range r.values() {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+2, row)
			if err != nil {
				return err
			}
			if err := f.SetCellFloat(sheetName, cell, v, -1, 64); err != nil {
				return fmt.Errorf("write %s for %s: %w", Columns[j+1], r.Gene, err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}
