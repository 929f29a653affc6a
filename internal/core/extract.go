package core

// extract.go turns source rows into a filtered, deduplicated ResultSet.
//
// Each row is checked in a fixed order:
//  1. Course exclusion (an excluded row never claims its student ID)
//  2. Tutor filter
//  3. Blank student ID
//  4. Duplicate student ID (first admitted row wins)
//
// The seen-set lives only for one Extract call.

import (
	"errors"
	"io"
	"strings"
)

// ExtractStats counts what happened to each source row.
//
// Every row lands in exactly one counter, the first check it fails in the
// order course, tutor, blank ID, duplicate. A tutored repeat of an admitted
// student ID is therefore counted in ExcludedByTutor, not Duplicates, when
// the tutor filter is on.
type ExtractStats struct {
	RowsRead         int `json:"rowsRead"`
	ExcludedByCourse int `json:"excludedByCourse"`
	ExcludedByTutor  int `json:"excludedByTutor"`
	BlankID          int `json:"blankId"`
	Duplicates       int `json:"duplicates"`
	Included         int `json:"included"`
}

// Extract reads src to the end and returns the records that pass cfg, in
// source order. Missing columns read as empty strings; only a failure of the
// source itself is returned as an error.
func Extract(src RowSource, cfg FilterConfig, cols ColumnMap) (ResultSet, ExtractStats, error) {
	var stats ExtractStats
	seen := make(map[string]struct{})
	out := ResultSet{}

	for {
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, sourceError("", err)
		}
		stats.RowsRead++

		studentID := strings.TrimSpace(row.Get(cols.StudentID))
		courseTitle := strings.TrimSpace(row.Get(cols.CourseTitle))
		tutor := strings.TrimSpace(row.Get(cols.PersonalTutor))

		if cfg.Excludes(courseTitle) {
			stats.ExcludedByCourse++
			continue
		}
		if cfg.RequireNoTutor && tutor != "" {
			stats.ExcludedByTutor++
			continue
		}
		if studentID == "" {
			stats.BlankID++
			continue
		}
		if _, dup := seen[studentID]; dup {
			stats.Duplicates++
			continue
		}

		seen[studentID] = struct{}{}
		out = append(out, recordFromRow(row, studentID, cols))
		stats.Included++
	}

	return out, stats, nil
}

// recordFromRow builds the stored record. Only the student ID is stored
// trimmed; every other field keeps the value as read.
func recordFromRow(row Row, studentID string, cols ColumnMap) StudentRecord {
	return StudentRecord{
		StudentID:     studentID,
		FirstName:     row.Get(cols.FirstName),
		LastName:      row.Get(cols.LastName),
		CourseTitle:   row.Get(cols.CourseTitle),
		CourseLevel:   row.Get(cols.CourseLevel),
		PersonalTutor: row.Get(cols.PersonalTutor),
	}
}
