// Package templates holds the HTML components of the roster web front end.
//
// Components are written in .templ files; run `templ generate` after
// editing them to refresh the *_templ.go files.
package templates

import (
	"fmt"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/rosterfilter/internal/core"
)

// CourseOption is one checkbox in the course exclusion list.
type CourseOption struct {
	Title   string
	Checked bool
}

// DashboardData feeds the upload form.
type DashboardData struct {
	CatalogName    string
	Courses        []CourseOption
	RequireNoTutor bool
	MaxUploadMB    int64
	Recent         []core.RunEvent
}

// ResultData feeds the result page of one run.
type ResultData struct {
	Info    core.SessionInfo
	Records core.ResultSet
}

func courseInputID(i int) string {
	return "course-" + strconv.Itoa(i)
}

func runURL(id, suffix string) templ.SafeURL {
	return templ.URL("/api/runs/" + id + suffix)
}

func reloadURL(id string) templ.SafeURL {
	return templ.URL("/runs/" + id + "/reload")
}

func statsSummary(st core.ExtractStats) string {
	return fmt.Sprintf("%d students listed from %d rows: %d excluded by course, %d with a tutor, %d without an ID, %d duplicates.",
		st.Included, st.RowsRead, st.ExcludedByCourse, st.ExcludedByTutor, st.BlankID, st.Duplicates)
}
