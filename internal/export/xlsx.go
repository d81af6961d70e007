package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/cleared-dev/banktx/internal/model"
)

// SheetName is the name of the worksheet holding the listing.
const SheetName = "Transactions"

var columns = []string{"Reference", "Timestamp", "Amount", "Description"}

var widths = []float64{16, 24, 22, 48}

// highlightFill marks the highlighted row.
const highlightFill = "FFF2CC"

// WriteXLSX writes rows as a single worksheet to w, one row per transaction
// after a bold header. The highlighted row is filled.
func WriteXLSX(w io.Writer, rows []model.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	highlightStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{highlightFill}},
	})
	if err != nil {
		return fmt.Errorf("creating highlight style: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := styleRow(f, 1, headerStyle); err != nil {
		return err
	}

	for i, r := range rows {
		rowNum := i + 2
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		values := []any{r.Reference, r.Timestamp, r.Amount, r.Description}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("writing row %d: %w", rowNum, err)
		}
		if r.Highlight {
			if err := styleRow(f, rowNum, highlightStyle); err != nil {
				return err
			}
		}
	}

	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("sizing column %s: %w", col, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// WriteFile writes the workbook to path, creating parent directories.
func WriteFile(path string, rows []model.Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating export dir: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteXLSX(out, rows); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func styleRow(f *excelize.File, row, style int) error {
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(columns), row)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, first, last, style); err != nil {
		return fmt.Errorf("styling row %d: %w", row, err)
	}
	return nil
}
