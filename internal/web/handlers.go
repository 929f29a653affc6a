package web

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/rosterfilter/internal/core"
	"github.com/JonMunkholm/rosterfilter/internal/logging"
	"github.com/JonMunkholm/rosterfilter/internal/web/templates"
)

// maxFormMemory is how much of a multipart upload is held in memory before
// spilling to a temp file.
const maxFormMemory = 8 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// recentRunsLimit is how many history rows the dashboard shows.
const recentRunsLimit = 10

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}

// handleDashboard renders the upload form with every catalog course checked.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	courses := make([]templates.CourseOption, 0, len(s.catalog.ExcludedCourses))
	for _, title := range s.catalog.ExcludedCourses {
		courses = append(courses, templates.CourseOption{Title: title, Checked: true})
	}

	recent, err := s.service.RecentRuns(ctx, recentRunsLimit)
	if err != nil {
		logging.FromContext(ctx).Warn("failed to load run history", "error", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.Dashboard(templates.DashboardData{
		CatalogName:    s.catalog.Name,
		Courses:        courses,
		RequireNoTutor: s.cfg.Roster.RequireNoTutor,
		MaxUploadMB:    s.cfg.Roster.MaxFileSize >> 20,
		Recent:         recent,
	}).Render(ctx, w)
}

// upload is a parsed roster upload form.
type upload struct {
	file   multipart.File
	name   string
	filter core.FilterConfig
}

// parseUpload reads the multipart form: the roster in "file", one "exclude"
// value per excluded course, and "no_tutor" when the tutor filter is on.
//
// Browser forms send checkboxes, so an absent field means unchecked. API
// clients may leave either field out to get the server defaults: the
// catalog's courses and ROSTER_REQUIRE_NO_TUTOR.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	maxSize := s.cfg.Roster.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(min(maxSize, maxFormMemory)); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: limit is %d bytes", errFileTooLarge, tooLarge.Limit)
		}
		return nil, fmt.Errorf("%w: %v", errNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errNoFile
	}

	filter, err := s.uploadFilter(r.MultipartForm.Value, strings.HasPrefix(r.URL.Path, "/api/"))
	if err != nil {
		file.Close()
		return nil, err
	}

	return &upload{
		file:   file,
		name:   filepath.Base(header.Filename),
		filter: filter,
	}, nil
}

// uploadFilter builds the filter from the form values. An empty "exclude"
// value excludes nothing, so an API client can ask for every course.
func (s *Server) uploadFilter(form map[string][]string, api bool) (core.FilterConfig, error) {
	exclude, excludeSent := form["exclude"]
	noTutor, noTutorSent := form["no_tutor"]

	exclude = slices.DeleteFunc(slices.Clone(exclude), func(c string) bool {
		return strings.TrimSpace(c) == ""
	})

	if !api {
		return core.NewFilterConfig(exclude, noTutorSent && noTutor[0] != ""), nil
	}

	if !excludeSent {
		exclude = s.catalog.Courses()
	}
	requireNoTutor := s.cfg.Roster.RequireNoTutor
	if noTutorSent {
		v, err := parseFormBool(noTutor[0])
		if err != nil {
			return core.FilterConfig{}, fmt.Errorf("%w: no_tutor=%q", errBadField, noTutor[0])
		}
		requireNoTutor = v
	}
	return core.NewFilterConfig(exclude, requireNoTutor), nil
}

// parseFormBool accepts strconv.ParseBool values plus the checkbox
// spellings "on" and "off". An empty value is false.
func parseFormBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "yes":
		return true, nil
	case "off", "no", "":
		return false, nil
	}
	return strconv.ParseBool(v)
}

// handleCreateRun processes an uploaded roster. Browsers are redirected to
// the result page; API clients get the run as JSON.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	up, err := s.parseUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer up.file.Close()

	sess, err := s.service.Process(r.Context(), up.name, up.file, up.filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(), "run_id", sess.ID, "source", up.name).
		Info("run created", "records", sess.Len())

	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Location", "/api/runs/"+sess.ID)
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, sess.Info())
		return
	}
	http.Redirect(w, r, "/runs/"+sess.ID, http.StatusSeeOther)
}

// handleReloadRun replaces a run's records with those of a new file.
func (s *Server) handleReloadRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")

	up, err := s.parseUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer up.file.Close()

	sess, err := s.service.Reprocess(r.Context(), id, up.name, up.file, up.filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	http.Redirect(w, r, "/runs/"+sess.ID, http.StatusSeeOther)
}

// handleRunPage renders the sorted records of a run.
func (s *Server) handleRunPage(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.Result(templates.ResultData{
		Info:    sess.Info(),
		Records: sess.Records(),
	}).Render(r.Context(), w)
}

// CatalogResponse is the JSON form of the course catalog.
type CatalogResponse struct {
	Name            string   `json:"name"`
	ExcludedCourses []string `json:"excludedCourses"`
	RequireNoTutor  bool     `json:"requireNoTutor"`
}

// handleCatalog returns the courses offered for exclusion and the default
// tutor filter setting.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, CatalogResponse{
		Name:            s.catalog.Name,
		ExcludedCourses: s.catalog.Courses(),
		RequireNoTutor:  s.cfg.Roster.RequireNoTutor,
	})
}

// handleStatus returns run slot usage.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.LimiterStatus())
}

// RunResponse is the JSON form of a run.
type RunResponse struct {
	Run     core.SessionInfo `json:"run"`
	Records core.ResultSet   `json:"records"`
}

// handleRunJSON returns a run's metadata and sorted records.
func (s *Server) handleRunJSON(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, RunResponse{Run: sess.Info(), Records: sess.Records()})
}

// handleRunLines writes the display lines of a run as plain text.
func (s *Server) handleRunLines(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := core.WriteLines(w, sess.Records()); err != nil {
		logging.FromContext(r.Context()).Warn("lines write failed", "run_id", sess.ID, "error", err)
	}
}

// handleRunExport downloads a run as an Excel workbook. The workbook is
// built in memory first so a failure can still be reported as an error.
func (s *Server) handleRunExport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if _, err := s.service.ExportTo(r.Context(), sess, &buf); err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": exportName(sess.Info().Source),
	}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("export download interrupted", "run_id", sess.ID, "error", err)
	}
}

// handleDiscardRun drops a run's records.
func (s *Server) handleDiscardRun(w http.ResponseWriter, r *http.Request) {
	s.service.Discard(chi.URLParam(r, "runID"))
	w.WriteHeader(http.StatusNoContent)
}

// handleRecentRuns returns recorded run history, newest first.
func (s *Server) handleRecentRuns(w http.ResponseWriter, r *http.Request) {
	events, err := s.service.RecentRuns(r.Context(), parseIntParam(r, "limit", recentRunsLimit))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if events == nil {
		events = []core.RunEvent{}
	}
	writeJSON(w, events)
}

// parseIntParam parses a positive integer query parameter with a default.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// exportName derives the download name from the uploaded file name.
func exportName(source string) string {
	base := filepath.Base(source)
	stem := base[:len(base)-len(filepath.Ext(base))]
	if stem == "" || stem == "." || stem == "/" {
		stem = "roster"
	}
	return stem + "-filtered.xlsx"
}
