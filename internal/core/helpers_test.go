package core

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// rosterHeader is a header row in the student records system layout, with
// extra columns the extractor must ignore.
var rosterHeader = []string{"StudentID2", "CourseTitle2", "FirstForename2", "Surname2", "CourseSession", "Textbox239", "Campus"}

// roster is one source row: id, course, first, last, level, tutor.
type roster [6]string

// rosterCSV renders rows under rosterHeader.
func rosterCSV(t *testing.T, rows ...roster) string {
	t.Helper()
	var b strings.Builder
	w := csv.NewWriter(&b)
	require.NoError(t, w.Write(rosterHeader))
	for _, r := range rows {
		require.NoError(t, w.Write(append(r[:], "Main")))
	}
	w.Flush()
	require.NoError(t, w.Error())
	return b.String()
}

// csvSource parses text as a roster CSV.
func csvSource(t *testing.T, text string) *CSVSource {
	t.Helper()
	src, err := NewCSVSource(strings.NewReader(text))
	require.NoError(t, err)
	return src
}

// writeFile writes data to name under a fresh temp directory.
func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// failingSource returns rows, then err.
type failingSource struct {
	rows []Row
	err  error
}

func (s *failingSource) Next() (Row, error) {
	if len(s.rows) == 0 {
		return Row{}, s.err
	}
	r := s.rows[0]
	s.rows = s.rows[1:]
	return r, nil
}

var errDiskGone = errors.New("disk gone")

var _ RowSource = (*failingSource)(nil)
var _ io.Closer = (*CSVSource)(nil)
