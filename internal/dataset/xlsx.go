package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// readXLSX returns the rows of the named sheet, or of the first sheet when
// sheetName is empty.
func readXLSX(path, sheetName string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook '%s' has no sheets", filepath.Base(path))
	}
	target := sheets[0]
	if sheetName != "" {
		target = ""
		for _, s := range sheets {
			if strings.EqualFold(s, sheetName) {
				target = s
				break
			}
		}
		if target == "" {
			return nil, fmt.Errorf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
				sheetName, filepath.Base(path), strings.Join(sheets, ", "))
		}
	}
	rows, err := f.GetRows(target)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", target, err)
	}
	return rows, nil
}
