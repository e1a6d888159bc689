package export

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Schedule"

// XLSXExporter renders datasets into a single-sheet workbook.
type XLSXExporter struct {
	sheet string
}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{sheet: xlsxSheet}
}

// Extension implements Renderer.
func (e *XLSXExporter) Extension() string { return "xlsx" }

// Render writes the title row, notes, a styled header and one row per record.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	idx, err := f.NewSheet(e.sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return nil, fmt.Errorf("create title style: %w", err)
	}

	row := 1
	lastCol, _ := excelize.ColumnNumberToName(len(data.Headers))
	if data.Title != "" {
		if err := f.SetCellValue(e.sheet, cellName(1, row), data.Title); err != nil {
			return nil, err
		}
		if len(data.Headers) > 1 {
			if err := f.MergeCell(e.sheet, cellName(1, row), fmt.Sprintf("%s%d", lastCol, row)); err != nil {
				return nil, err
			}
		}
		if err := f.SetCellStyle(e.sheet, cellName(1, row), cellName(1, row), titleStyle); err != nil {
			return nil, err
		}
		row++
	}
	for _, note := range data.Notes {
		if err := f.SetCellValue(e.sheet, cellName(1, row), note); err != nil {
			return nil, err
		}
		row++
	}
	if row > 1 {
		row++
	}

	for i, header := range data.Headers {
		if err := f.SetCellValue(e.sheet, cellName(i+1, row), header); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(e.sheet, cellName(1, row), cellName(len(data.Headers), row), headerStyle); err != nil {
		return nil, err
	}
	row++

	widths := make([]int, len(data.Headers))
	for i, header := range data.Headers {
		widths[i] = utf8.RuneCountInString(header)
	}
	for _, record := range data.Rows {
		for i, value := range data.record(record) {
			if err := f.SetCellValue(e.sheet, cellName(i+1, row), value); err != nil {
				return nil, err
			}
			if n := utf8.RuneCountInString(value); n > widths[i] {
				widths[i] = n
			}
		}
		row++
	}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(e.sheet, col, col, float64(min(w, 60)+2)); err != nil {
			return nil, err
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
