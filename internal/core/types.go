// Package core provides the business logic for roster filtering and export.
// This package has no UI dependencies and can be used by any frontend.
package core

import (
	"slices"
	"strings"
)

// StudentRecord is one row of cleaned output.
type StudentRecord struct {
	StudentID     string `json:"studentId"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	CourseTitle   string `json:"courseTitle"`
	CourseLevel   string `json:"courseLevel"`
	PersonalTutor string `json:"personalTutor"` // Empty means no tutor assigned
}

// Fields returns the record values in export column order.
func (r StudentRecord) Fields() []string {
	return []string{r.StudentID, r.FirstName, r.LastName, r.CourseTitle, r.CourseLevel, r.PersonalTutor}
}

// ResultSet is the ordered output of one extraction run.
// It is rebuilt by each extraction and only ever reordered by Sort.
type ResultSet []StudentRecord

// Clone returns a copy that can be reordered without affecting rs.
func (rs ResultSet) Clone() ResultSet {
	return slices.Clone(rs)
}

// FilterConfig holds the inclusion rules for a run.
// Build it with NewFilterConfig; the zero value excludes nothing and keeps
// tutored students.
type FilterConfig struct {
	excluded       map[string]struct{}
	RequireNoTutor bool
}

// NewFilterConfig copies courses into an owned set so later changes by the
// caller cannot affect a run in progress.
func NewFilterConfig(courses []string, requireNoTutor bool) FilterConfig {
	set := make(map[string]struct{}, len(courses))
	for _, c := range courses {
		set[c] = struct{}{}
	}
	return FilterConfig{excluded: set, RequireNoTutor: requireNoTutor}
}

// Excludes reports whether a course title is in the exclusion set.
func (c FilterConfig) Excludes(course string) bool {
	_, ok := c.excluded[course]
	return ok
}

// ExcludedCourses returns the exclusion set as a sorted slice.
func (c FilterConfig) ExcludedCourses() []string {
	out := make([]string, 0, len(c.excluded))
	for course := range c.excluded {
		out = append(out, course)
	}
	slices.Sort(out)
	return out
}

// Field identifies one logical roster column.
type Field int

const (
	FieldStudentID Field = iota
	FieldFirstName
	FieldLastName
	FieldCourseTitle
	FieldCourseLevel
	FieldPersonalTutor
)

// ColumnMap maps logical fields to source header names.
type ColumnMap struct {
	StudentID     string
	FirstName     string
	LastName      string
	CourseTitle   string
	CourseLevel   string
	PersonalTutor string
}

// DefaultColumns matches the headers of the student records system export.
var DefaultColumns = ColumnMap{
	StudentID:     "StudentID2",
	FirstName:     "FirstForename2",
	LastName:      "Surname2",
	CourseTitle:   "CourseTitle2",
	CourseLevel:   "CourseSession",
	PersonalTutor: "Textbox239",
}

// ExportHeaders are the fixed column titles of the spreadsheet export.
var ExportHeaders = []string{
	"Student ID",
	"First Name",
	"Last Name",
	"Course Title",
	"Course Level/Year",
	"Personal Tutor",
}

// DisplayColumns reads files produced by Export back in as a source.
var DisplayColumns = ColumnMap{
	StudentID:     ExportHeaders[FieldStudentID],
	FirstName:     ExportHeaders[FieldFirstName],
	LastName:      ExportHeaders[FieldLastName],
	CourseTitle:   ExportHeaders[FieldCourseTitle],
	CourseLevel:   ExportHeaders[FieldCourseLevel],
	PersonalTutor: ExportHeaders[FieldPersonalTutor],
}

// Header returns the source header configured for f.
func (m ColumnMap) Header(f Field) string {
	switch f {
	case FieldStudentID:
		return m.StudentID
	case FieldFirstName:
		return m.FirstName
	case FieldLastName:
		return m.LastName
	case FieldCourseTitle:
		return m.CourseTitle
	case FieldCourseLevel:
		return m.CourseLevel
	case FieldPersonalTutor:
		return m.PersonalTutor
	default:
		return ""
	}
}

// WithDefaults fills blank entries from DefaultColumns.
func (m ColumnMap) WithDefaults() ColumnMap {
	fill := func(v, def string) string {
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	}
	return ColumnMap{
		StudentID:     fill(m.StudentID, DefaultColumns.StudentID),
		FirstName:     fill(m.FirstName, DefaultColumns.FirstName),
		LastName:      fill(m.LastName, DefaultColumns.LastName),
		CourseTitle:   fill(m.CourseTitle, DefaultColumns.CourseTitle),
		CourseLevel:   fill(m.CourseLevel, DefaultColumns.CourseLevel),
		PersonalTutor: fill(m.PersonalTutor, DefaultColumns.PersonalTutor),
	}
}

// HeaderIndex maps column names (lowercase) to their position in the row.
type HeaderIndex map[string]int

// MakeHeaderIndex creates a HeaderIndex from a header row.
// Keys are trimmed and lowercased for case-insensitive matching.
// When a header repeats, the first occurrence wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := idx[key]; dup {
			continue
		}
		idx[key] = i
	}
	return idx
}

// Row is one source row, looked up by header name.
type Row struct {
	idx    HeaderIndex
	values []string
}

// NewRow pairs a row's values with the header index of its source.
func NewRow(idx HeaderIndex, values []string) Row {
	return Row{idx: idx, values: values}
}

// Get returns the value under the named column, or "" when the column is
// absent from the header or the row is short.
func (r Row) Get(name string) string {
	pos, ok := r.idx[strings.ToLower(strings.TrimSpace(name))]
	if !ok || pos >= len(r.values) {
		return ""
	}
	return r.values[pos]
}

// RowSource yields rows in source order. Next returns io.EOF when exhausted.
type RowSource interface {
	Next() (Row, error)
}
