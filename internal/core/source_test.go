package core

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCSVSource_SkipsBOM(t *testing.T) {
	text := "\ufeff" + rosterCSV(t, roster{"S1", "CS", "Alice", "Smith", "Y1", ""})

	rs, _, err := Extract(csvSource(t, text), NewFilterConfig(nil, true), DefaultColumns)
	require.NoError(t, err)
	require.Len(t, rs, 1, "BOM must not hide the StudentID2 header")
	assert.Equal(t, "S1", rs[0].StudentID)
}

func TestCSVSource_InvalidUTF8(t *testing.T) {
	data := []byte("StudentID2,Surname2\nS1,Sm\xe9th\n")
	path := writeFile(t, "latin1.csv", data)

	_, _, err := ReadFile(path, NewFilterConfig(nil, true), DefaultColumns)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
	assert.True(t, errors.Is(err, ErrInvalidUTF8))
	assert.Equal(t, "SRC002", MapError(err).Code)
}

func TestCSVSource_RaggedRows(t *testing.T) {
	text := "StudentID2,Surname2,CourseTitle2\nS1,Smith\nS2,Jones,CS,extra\n"
	src := csvSource(t, text)

	first, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, "", first.Get("CourseTitle2"))

	second, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, "CS", second.Get("coursetitle2"))

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, int64(len(text)), src.BytesRead())
}

func TestCSVSource_LenientQuotes(t *testing.T) {
	text := "StudentID2,Surname2\nS1,O\"Brien\n"
	src := csvSource(t, text)

	row, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, `O"Brien`, row.Get("Surname2"))
}

func TestReadFile(t *testing.T) {
	path := writeFile(t, "roster.csv", []byte(rosterCSV(t,
		roster{"S2", "CS", "Bob", "Jones", "Y2", ""},
		roster{"S1", "CS", "Alice", "Smith", "Y1", ""},
	)))

	rs, stats, err := ReadFile(path, NewFilterConfig(nil, true), DefaultColumns)
	require.NoError(t, err)
	assert.Equal(t, []string{"S2", "S1"}, ids(rs), "extraction keeps source order")
	assert.Equal(t, 2, stats.Included)
}

func TestReadFile_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.csv")

	_, _, err := ReadFile(path, NewFilterConfig(nil, true), DefaultColumns)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, path, pe.Path)
	assert.Equal(t, "SRC001", MapError(err).Code)
}

func TestWorkbookSource(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]any{
		{"StudentID2", "FirstForename2", "Surname2", "CourseTitle2", "CourseSession", "Textbox239"},
		{"S1", "Alice", "Smith", "CS", "Y1"},
		{},
		{"S2", "Bob", "Jones", "Maths", "Y2", "DrX"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	path := writeFile(t, "roster.xlsx", buf.Bytes())

	rs, stats, err := ReadFile(path, NewFilterConfig(nil, true), DefaultColumns)
	require.NoError(t, err)
	assert.Equal(t, ResultSet{{
		StudentID:   "S1",
		FirstName:   "Alice",
		LastName:    "Smith",
		CourseTitle: "CS",
		CourseLevel: "Y1",
	}}, rs)
	assert.Equal(t, 2, stats.RowsRead)
	assert.Equal(t, 1, stats.ExcludedByTutor)
}

func TestWorkbookSource_PrefersDataSheet(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "export.xlsx")
	_, err := Export(ResultSet{{StudentID: "S9", LastName: "Nine", CourseTitle: "CS"}}, dest)
	require.NoError(t, err)

	f, err := excelize.OpenFile(dest)
	require.NoError(t, err)
	_, err = f.NewSheet("Notes")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Notes", "A1", "ignored"))
	require.NoError(t, f.SaveAs(dest))
	require.NoError(t, f.Close())

	src, err := OpenSource(dest)
	require.NoError(t, err)
	defer src.Close()

	rs, _, err := Extract(src, NewFilterConfig(nil, false), DisplayColumns)
	require.NoError(t, err)
	assert.Equal(t, []string{"S9"}, ids(rs))
}

func TestNewSource_CorruptWorkbook(t *testing.T) {
	_, err := NewSource("upload.xlsx", strings.NewReader("not a zip file"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
}

func TestIsWorkbook(t *testing.T) {
	tests := map[string]bool{
		"roster.xlsx": true,
		"ROSTER.XLSX": true,
		"book.xlsm":   true,
		"roster.csv":  false,
		"roster.xls":  false,
		"roster":      false,
	}
	for name, want := range tests {
		assert.Equal(t, want, IsWorkbook(name), name)
	}
}
