package core

// source.go reads roster rows from CSV text or an Excel workbook.
//
// Both sources treat the first row as the header and hand out rows as
// header-indexed field maps. A source never fails because a row is short or
// has extra columns; it fails only when the file cannot be opened or decoded.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SourceCloser is a RowSource that holds an open file.
type SourceCloser interface {
	RowSource
	io.Closer
}

// CSVSource reads comma-separated roster rows.
type CSVSource struct {
	reader  *csv.Reader
	counter *CountingReader
	header  HeaderIndex
	closer  io.Closer
}

// NewCSVSource reads the header row from r and returns a source positioned
// at the first data row. A file with no rows at all yields an empty source.
func NewCSVSource(r io.Reader) (*CSVSource, error) {
	counter := WrapCSVInput(r)
	reader := csv.NewReader(counter)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	s := &CSVSource{reader: reader, counter: counter}

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return s, nil
	}
	if err != nil {
		return nil, csvError(err)
	}
	s.header = MakeHeaderIndex(header)
	return s, nil
}

// Next implements RowSource.
func (s *CSVSource) Next() (Row, error) {
	if s.header == nil {
		return Row{}, io.EOF
	}
	values, err := s.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Row{}, io.EOF
		}
		return Row{}, csvError(err)
	}
	return NewRow(s.header, values), nil
}

// BytesRead reports how much input has been consumed so far.
func (s *CSVSource) BytesRead() int64 {
	return s.counter.BytesRead
}

// Close closes the underlying file when the source owns one.
func (s *CSVSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.Line, Err: pe.Err}
	}
	return &ParseError{Err: err}
}

// WorkbookSource reads roster rows from an Excel workbook.
type WorkbookSource struct {
	file   *excelize.File
	header HeaderIndex
	rows   [][]string
	next   int
}

// NewWorkbookSource loads the "Data" sheet of f, or its first sheet when
// there is no "Data" sheet.
func NewWorkbookSource(f *excelize.File) (*WorkbookSource, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Err: errors.New("workbook has no sheets")}
	}
	sheet := sheets[0]
	if slices.Contains(sheets, ExportSheet) {
		sheet = ExportSheet
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("read sheet %q: %w", sheet, err)}
	}

	s := &WorkbookSource{file: f}
	if len(rows) > 0 {
		s.header = MakeHeaderIndex(rows[0])
		s.rows = rows[1:]
	}
	return s, nil
}

// Next implements RowSource. Rows with no cells are skipped, as blank lines
// are in CSV input.
func (s *WorkbookSource) Next() (Row, error) {
	for s.next < len(s.rows) {
		values := s.rows[s.next]
		s.next++
		if len(values) == 0 {
			continue
		}
		return NewRow(s.header, values), nil
	}
	return Row{}, io.EOF
}

// Close releases the workbook.
func (s *WorkbookSource) Close() error {
	return s.file.Close()
}

// IsWorkbook reports whether a file name has an Excel workbook extension.
func IsWorkbook(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return true
	default:
		return false
	}
}

// OpenSource opens the roster file at path, choosing the reader by extension.
func OpenSource(path string) (SourceCloser, error) {
	if IsWorkbook(path) {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, sourceError(path, err)
		}
		src, err := NewWorkbookSource(f)
		if err != nil {
			f.Close()
			return nil, sourceError(path, err)
		}
		return src, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, sourceError(path, err)
	}
	src, err := NewCSVSource(file)
	if err != nil {
		file.Close()
		return nil, sourceError(path, err)
	}
	src.closer = file
	return src, nil
}

// NewSource builds a source from an already open reader, such as an
// uploaded file. name is only used to pick CSV or workbook parsing.
func NewSource(name string, r io.Reader) (SourceCloser, error) {
	if IsWorkbook(name) {
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, sourceError(name, err)
		}
		src, err := NewWorkbookSource(f)
		if err != nil {
			f.Close()
			return nil, sourceError(name, err)
		}
		return src, nil
	}

	src, err := NewCSVSource(r)
	if err != nil {
		return nil, sourceError(name, err)
	}
	return src, nil
}

// ReadFile opens path, extracts the matching records and closes the file
// before returning, on success or failure.
func ReadFile(path string, cfg FilterConfig, cols ColumnMap) (ResultSet, ExtractStats, error) {
	src, err := OpenSource(path)
	if err != nil {
		return nil, ExtractStats{}, err
	}
	defer src.Close()

	rs, stats, err := Extract(src, cfg, cols)
	if err != nil {
		return nil, stats, sourceError(path, err)
	}
	return rs, stats, nil
}
