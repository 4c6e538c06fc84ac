package pipeline

import (
	"fmt"
	"os"

	"github.com/aluiziolira/go-catalog-export/assemble"
	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Sheet1"

// XLSXWriter writes the assembled table to a spreadsheet.
type XLSXWriter struct {
	path string
	file *excelize.File
}

// NewXLSXWriter initialises the spreadsheet writer. The workbook is
// built in memory and saved to disk on Write.
func NewXLSXWriter(filename string) (*XLSXWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	return &XLSXWriter{
		path: filename,
		file: excelize.NewFile(),
	}, nil
}

// Write emits the header row followed by every record and saves the
// workbook.
func (xw *XLSXWriter) Write(table *assemble.Table) error {
	header := make([]interface{}, len(table.Columns))
	for i, col := range table.Columns {
		header[i] = col
	}
	if err := xw.file.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}

	for i, rec := range table.Records {
		cells := make([]interface{}, 0, len(table.Columns))
		for _, v := range table.Row(rec) {
			cells = append(cells, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("compute xlsx cell: %w", err)
		}
		if err := xw.file.SetSheetRow(xlsxSheet, cell, &cells); err != nil {
			return fmt.Errorf("write xlsx record: %w", err)
		}
	}

	if err := xw.file.SaveAs(xw.path); err != nil {
		return fmt.Errorf("save xlsx file: %w", err)
	}
	return nil
}

// Close releases the in-memory workbook.
func (xw *XLSXWriter) Close() error {
	if err := xw.file.Close(); err != nil {
		return fmt.Errorf("close xlsx file: %w", err)
	}
	return nil
}

// Validate ensures the workbook was saved with data.
func (xw *XLSXWriter) Validate() error {
	info, err := os.Stat(xw.path)
	if err != nil {
		return fmt.Errorf("stat xlsx file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("xlsx file is empty")
	}
	return nil
}
