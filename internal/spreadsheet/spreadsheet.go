// Package spreadsheet reads workbook uploads into header-keyed rows and turns
// grouped rows into flat invoice candidates without calling a model.
package spreadsheet

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Spreadsheet MIME types routed to the row path
const (
	MIMETypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMETypeXLS  = "application/vnd.ms-excel"
)

// ErrNoSheets is returned for a workbook without any worksheet
var ErrNoSheets = errors.New("workbook has no sheets")

var signatures = [][]byte{
	{0x50, 0x4B, 0x03, 0x04}, // zip container (xlsx)
	{0xD0, 0xCF, 0x11, 0xE0}, // compound file (xls)
}

// Row maps a column header to the cell value of one data row
type Row map[string]any

// IsMIMEType reports whether mimeType names a spreadsheet format
func IsMIMEType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	return mimeType == MIMETypeXLSX || mimeType == MIMETypeXLS
}

// HasSignature reports whether data starts with a known workbook container
// signature.
func HasSignature(data []byte) bool {
	for _, sig := range signatures {
		if bytes.HasPrefix(data, sig) {
			return true
		}
	}
	return false
}

// IsSpreadsheet reports whether data carries a workbook signature and can be
// opened as a workbook.
func IsSpreadsheet(data []byte) bool {
	if !HasSignature(data) {
		return false
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// ReadRows reads the first sheet. The first row is the header; missing cells
// are empty strings.
func ReadRows(data []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return []Row{}, nil
	}

	headers := rows[0]
	out := make([]Row, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		row := make(Row, len(headers))
		for col, header := range headers {
			if header == "" {
				continue
			}
			value := ""
			if col < len(cells) {
				value = cells[col]
			}
			row[header] = value
		}
		out = append(out, row)
	}
	return out, nil
}

// Sheet is one worksheet read strictly
type Sheet struct {
	Name string `json:"name"`
	Rows []Row  `json:"rows"`
}

// ReadSheets reads every sheet in workbook order. Blank headers are dropped
// and so are rows without any non-empty cell. Missing cells are nil.
func ReadSheets(data []byte) ([]Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, ErrNoSheets
	}

	sheets := make([]Sheet, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", name, err)
		}
		sheet := Sheet{Name: name, Rows: []Row{}}
		if len(rows) == 0 {
			sheets = append(sheets, sheet)
			continue
		}

		headers := rows[0]
		for _, cells := range rows[1:] {
			if isBlankRow(cells) {
				continue
			}
			row := make(Row, len(headers))
			for col, header := range headers {
				key := strings.TrimSpace(header)
				if key == "" {
					continue
				}
				if col < len(cells) && cells[col] != "" {
					row[key] = cells[col]
				} else {
					row[key] = nil
				}
			}
			sheet.Rows = append(sheet.Rows, row)
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
