package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned for an unknown or expired run ID.
var ErrRunNotFound = errors.New("run not found")

// DefaultSessionTTL is how long an idle run result is kept.
const DefaultSessionTTL = time.Hour

// Options configures a Service.
type Options struct {
	Columns       ColumnMap     // Source header names; blanks fall back to DefaultColumns
	MaxConcurrent int           // Simultaneous runs (default 1)
	MaxWait       time.Duration // Wait for a run slot before ErrTooManyRuns
	SessionTTL    time.Duration // Idle time before a result is dropped
	History       RunRecorder   // Nil disables run history
}

// Service owns the result of every run and serialises work on each one.
type Service struct {
	cols    ColumnMap
	limiter *RunLimiter
	history RunRecorder
	ttl     time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService creates a new Service instance.
func NewService(opts Options) *Service {
	if opts.History == nil {
		opts.History = NopRecorder{}
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	return &Service{
		cols:     opts.Columns.WithDefaults(),
		limiter:  NewRunLimiter(opts.MaxConcurrent, opts.MaxWait),
		history:  opts.History,
		ttl:      opts.SessionTTL,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Columns returns the source header mapping in use.
func (s *Service) Columns() ColumnMap {
	return s.cols
}

// Session holds one run's ResultSet. All access goes through its mutex, so
// extract, sort and export never overlap on the same records.
type Session struct {
	ID string

	mu        sync.Mutex
	source    string
	config    FilterConfig
	stats     ExtractStats
	records   ResultSet
	queued    time.Duration
	createdAt time.Time
	lastUsed  time.Time
}

// SessionInfo is a read-only snapshot of a session.
type SessionInfo struct {
	ID              string       `json:"id"`
	Source          string       `json:"source"`
	RequireNoTutor  bool         `json:"requireNoTutor"`
	ExcludedCourses []string     `json:"excludedCourses"`
	Stats           ExtractStats `json:"stats"`
	QueuedMS        int64        `json:"queuedMs"` // Time the last run waited for a slot
	CreatedAt       time.Time    `json:"createdAt"`
}

// Info returns the session's metadata.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:              s.ID,
		Source:          s.source,
		RequireNoTutor:  s.config.RequireNoTutor,
		ExcludedCourses: s.config.ExcludedCourses(),
		Stats:           s.stats,
		QueuedMS:        s.queued.Milliseconds(),
		CreatedAt:       s.createdAt,
	}
}

// Len returns the number of records.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Records sorts the session's records and returns a copy.
func (s *Session) Records() ResultSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	Sort(s.records)
	return s.records.Clone()
}

// Lines returns the display lines of the sorted records.
func (s *Session) Lines() iter.Seq[string] {
	return Lines(s.Records())
}

// Export sorts the records and writes them to the workbook file dest.
func (s *Session) Export(dest string) (ExportSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	Sort(s.records)
	return Export(s.records, dest)
}

// ExportTo sorts the records and writes them as a workbook to w.
func (s *Session) ExportTo(w io.Writer) (ExportSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	Sort(s.records)
	return ExportTo(s.records, w)
}

func (s *Session) replace(source string, cfg FilterConfig, out runOutput, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
	s.config = cfg
	s.records = out.records
	s.stats = out.stats
	s.queued = out.queued
	s.lastUsed = at
}

// Process reads a roster from r, filters and sorts it, and stores the result
// under a new run ID. name picks CSV or workbook parsing and is kept for
// display.
func (s *Service) Process(ctx context.Context, name string, r io.Reader, cfg FilterConfig) (*Session, error) {
	out, err := s.run(ctx, name, cfg, func() (SourceCloser, error) {
		return NewSource(name, r)
	})
	if err != nil {
		return nil, err
	}
	return s.store(ctx, name, cfg, out), nil
}

// ProcessFile is Process for a file on disk.
func (s *Service) ProcessFile(ctx context.Context, path string, cfg FilterConfig) (*Session, error) {
	out, err := s.run(ctx, path, cfg, func() (SourceCloser, error) {
		return OpenSource(path)
	})
	if err != nil {
		return nil, err
	}
	return s.store(ctx, path, cfg, out), nil
}

// Reprocess discards the records of run id and rebuilds them from a new
// source, keeping the run ID.
func (s *Service) Reprocess(ctx context.Context, id, name string, r io.Reader, cfg FilterConfig) (*Session, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	out, err := s.run(ctx, name, cfg, func() (SourceCloser, error) {
		return NewSource(name, r)
	})
	if err != nil {
		return nil, err
	}
	sess.replace(name, cfg, out, s.now())
	s.recordExtract(ctx, sess.ID, name, cfg, out.stats)
	return sess, nil
}

// runOutput is what one pass over a source produced.
type runOutput struct {
	records ResultSet
	stats   ExtractStats
	queued  time.Duration
}

// run holds a limiter slot while the source is open and extracted.
func (s *Service) run(ctx context.Context, name string, cfg FilterConfig, open func() (SourceCloser, error)) (runOutput, error) {
	release, queued, err := s.limiter.Admit(ctx, name)
	if err != nil {
		slog.Warn("run not admitted", "source", name, "queued_ms", queued.Milliseconds(), "error", err)
		return runOutput{}, err
	}
	defer release()
	if queued >= time.Millisecond {
		slog.Debug("run admitted after queueing", "source", name, "queued_ms", queued.Milliseconds())
	}

	start := time.Now()
	src, err := open()
	if err != nil {
		return runOutput{}, err
	}
	defer src.Close()

	rs, stats, err := Extract(src, cfg, s.cols)
	if err != nil {
		return runOutput{stats: stats}, sourceError(name, err)
	}
	Sort(rs)

	slog.Info("roster processed",
		"source", name,
		"rows_read", stats.RowsRead,
		"included", stats.Included,
		"excluded_by_course", stats.ExcludedByCourse,
		"excluded_by_tutor", stats.ExcludedByTutor,
		"blank_id", stats.BlankID,
		"duplicates", stats.Duplicates,
		"queued_ms", queued.Milliseconds(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return runOutput{records: rs, stats: stats, queued: queued}, nil
}

func (s *Service) store(ctx context.Context, name string, cfg FilterConfig, out runOutput) *Session {
	now := s.now()
	sess := &Session{ID: uuid.New().String(), createdAt: now}
	sess.replace(name, cfg, out, now)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.recordExtract(ctx, sess.ID, name, cfg, out.stats)
	return sess
}

func (s *Service) recordExtract(ctx context.Context, id, name string, cfg FilterConfig, stats ExtractStats) {
	recordRun(ctx, s.history, RunEvent{
		RunID:           id,
		Action:          ActionExtract,
		Source:          name,
		RequireNoTutor:  cfg.RequireNoTutor,
		ExcludedCourses: len(cfg.excluded),
		Stats:           stats,
		Rows:            stats.Included,
		CreatedAt:       s.now(),
	})
}

// Session returns the run with the given ID.
func (s *Service) Session(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	now := s.now()
	sess.mu.Lock()
	expired := now.Sub(sess.lastUsed) > s.ttl
	if !expired {
		sess.lastUsed = now
	}
	sess.mu.Unlock()

	if expired {
		s.Discard(id)
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return sess, nil
}

// Discard drops a run's result.
func (s *Service) Discard(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// ExportFile writes run sess to dest and records the export.
func (s *Service) ExportFile(ctx context.Context, sess *Session, dest string) (ExportSummary, error) {
	summary, err := sess.Export(dest)
	if err != nil {
		return summary, err
	}
	s.recordExport(ctx, sess, dest, summary)
	return summary, nil
}

// ExportTo writes run sess as a workbook to w and records the export.
func (s *Service) ExportTo(ctx context.Context, sess *Session, w io.Writer) (ExportSummary, error) {
	summary, err := sess.ExportTo(w)
	if err != nil {
		return summary, err
	}
	s.recordExport(ctx, sess, "", summary)
	return summary, nil
}

func (s *Service) recordExport(ctx context.Context, sess *Session, dest string, summary ExportSummary) {
	info := sess.Info()
	if dest == "" {
		dest = info.Source
	}
	recordRun(ctx, s.history, RunEvent{
		RunID:           sess.ID,
		Action:          ActionExport,
		Source:          dest,
		RequireNoTutor:  info.RequireNoTutor,
		ExcludedCourses: len(info.ExcludedCourses),
		Stats:           info.Stats,
		Rows:            summary.Rows,
		CreatedAt:       s.now(),
	})
}

// RecentRuns returns recorded run history, newest first.
func (s *Service) RecentRuns(ctx context.Context, limit int) ([]RunEvent, error) {
	return s.history.RecentRuns(ctx, limit)
}

// SweepExpired drops every run idle for longer than the TTL and returns how
// many were dropped.
func (s *Service) SweepExpired() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.lastUsed)
		sess.mu.Unlock()
		if idle > s.ttl {
			delete(s.sessions, id)
			dropped++
		}
	}
	return dropped
}

// StartSweeper runs SweepExpired every interval until ctx is cancelled.
// It blocks, so call it in a goroutine.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			if n := s.SweepExpired(); n > 0 {
				slog.Debug("expired sessions dropped", "count", n)
			}
		}
	}
}

// LimiterStatus reports run slot usage and the runs holding slots.
func (s *Service) LimiterStatus() RunLimiterStatus {
	return s.limiter.Status()
}

// WaitForRuns blocks until in-flight runs finish or ctx is done.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
