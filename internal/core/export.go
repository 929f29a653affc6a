package core

// export.go writes a ResultSet to an Excel workbook.
//
// The workbook has a single sheet named "Data": one header row with
// ExportHeaders, then one row per record in the order given. Each column is
// sized to its widest cell (header included), measured in characters.
// Callers sort before exporting; Export never reorders.

import (
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ExportSheet is the name of the only sheet in an exported workbook.
const ExportSheet = "Data"

// ExportSummary describes a written workbook.
type ExportSummary struct {
	Rows           int   `json:"rows"`
	SanitizedCells int   `json:"sanitizedCells"`
	ColumnWidths   []int `json:"columnWidths"`
}

// Export writes rs to the workbook file dest, replacing any existing file.
// It fails with ErrEmptyResult, without touching dest, when rs is empty.
func Export(rs ResultSet, dest string) (ExportSummary, error) {
	if len(rs) == 0 {
		return ExportSummary{}, &ExportError{Path: dest, Err: ErrEmptyResult}
	}

	f, summary, err := buildWorkbook(rs)
	if err != nil {
		return ExportSummary{}, destinationError(dest, err)
	}
	defer f.Close()

	if err := f.SaveAs(dest); err != nil {
		return ExportSummary{}, destinationError(dest, err)
	}

	logExport(dest, summary)
	return summary, nil
}

// ExportTo writes rs as a workbook to w, for example an HTTP response.
func ExportTo(rs ResultSet, w io.Writer) (ExportSummary, error) {
	if len(rs) == 0 {
		return ExportSummary{}, &ExportError{Err: ErrEmptyResult}
	}

	f, summary, err := buildWorkbook(rs)
	if err != nil {
		return ExportSummary{}, destinationError("", err)
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return ExportSummary{}, destinationError("", err)
	}

	logExport("", summary)
	return summary, nil
}

func buildWorkbook(rs ResultSet) (*excelize.File, ExportSummary, error) {
	f := excelize.NewFile()
	summary := ExportSummary{Rows: len(rs)}

	defaultSheet := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheet, ExportSheet); err != nil {
		f.Close()
		return nil, summary, fmt.Errorf("rename sheet: %w", err)
	}

	widths := make([]int, len(ExportHeaders))
	header := make([]any, len(ExportHeaders))
	for i, h := range ExportHeaders {
		header[i] = h
		widths[i] = utf8.RuneCountInString(h)
	}
	if err := f.SetSheetRow(ExportSheet, "A1", &header); err != nil {
		f.Close()
		return nil, summary, fmt.Errorf("write header: %w", err)
	}

	for i, rec := range rs {
		fields := rec.Fields()
		cells := make([]any, len(fields))
		for j, v := range fields {
			clean, changed := SanitizeCell(v)
			if changed {
				summary.SanitizedCells++
			}
			widths[j] = max(widths[j], utf8.RuneCountInString(clean))
			cells[j] = clean
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, summary, err
		}
		if err := f.SetSheetRow(ExportSheet, cell, &cells); err != nil {
			f.Close()
			return nil, summary, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, summary, err
		}
		if err := f.SetColWidth(ExportSheet, col, col, float64(min(w, excelize.MaxColumnWidth))); err != nil {
			f.Close()
			return nil, summary, fmt.Errorf("set width of column %s: %w", col, err)
		}
	}
	summary.ColumnWidths = widths

	return f, summary, nil
}

func logExport(dest string, summary ExportSummary) {
	if summary.SanitizedCells > 0 {
		slog.Warn("export replaced characters not allowed in spreadsheet cells",
			"dest", dest,
			"cells", summary.SanitizedCells,
		)
	}
	slog.Info("export written", "dest", dest, "rows", summary.Rows)
}

// ReadWorkbook reads the records of a workbook written by Export, in sheet
// order. Cells are returned as stored, with no filtering.
func ReadWorkbook(path string) (ResultSet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, sourceError(path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(ExportSheet)
	if err != nil {
		return nil, sourceError(path, err)
	}
	if len(rows) == 0 {
		return ResultSet{}, nil
	}

	idx := MakeHeaderIndex(rows[0])
	out := make(ResultSet, 0, len(rows)-1)
	for _, values := range rows[1:] {
		row := NewRow(idx, values)
		out = append(out, StudentRecord{
			StudentID:     row.Get(DisplayColumns.StudentID),
			FirstName:     row.Get(DisplayColumns.FirstName),
			LastName:      row.Get(DisplayColumns.LastName),
			CourseTitle:   row.Get(DisplayColumns.CourseTitle),
			CourseLevel:   row.Get(DisplayColumns.CourseLevel),
			PersonalTutor: row.Get(DisplayColumns.PersonalTutor),
		})
	}
	return out, nil
}
