package core

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stalledRun starts Process on a source that blocks until the returned
// writer is fed, and waits until the run holds its slot.
func stalledRun(t *testing.T, svc *Service, name string) (*io.PipeWriter, <-chan error) {
	t.Helper()
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := svc.Process(context.Background(), name, pr, NewFilterConfig(nil, true))
		done <- err
	}()
	require.Eventually(t, func() bool {
		return svc.LimiterStatus().Active == 1
	}, time.Second, 5*time.Millisecond)
	return pw, done
}

// finish feeds a one-student roster to a stalled run and waits for it.
func finish(t *testing.T, pw *io.PipeWriter, done <-chan error) {
	t.Helper()
	_, err := io.WriteString(pw, rosterCSV(t, roster{"S1", "CS", "Alice", "Smith", "Y1", ""}))
	require.NoError(t, err)
	require.NoError(t, pw.Close())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("stalled run did not finish")
	}
}

func TestRunLimiter_StatusShowsRunningSource(t *testing.T) {
	svc, _ := newTestService(t, nil)

	idle := svc.LimiterStatus()
	assert.Equal(t, 0, idle.Active)
	assert.Equal(t, 1, idle.Available)
	assert.Equal(t, DefaultMaxConcurrentRuns, idle.MaxConcurrent)
	assert.Empty(t, idle.Running)

	pw, done := stalledRun(t, svc, "term1.csv")
	busy := svc.LimiterStatus()
	assert.Equal(t, 0, busy.Available)
	require.Len(t, busy.Running, 1)
	assert.Equal(t, "term1.csv", busy.Running[0].Source)
	assert.False(t, busy.Running[0].Since.IsZero())

	finish(t, pw, done)
	assert.Equal(t, 0, svc.LimiterStatus().Active)
	assert.Empty(t, svc.LimiterStatus().Running)
}

func TestRunLimiter_QueuedRunRecordsWait(t *testing.T) {
	svc := NewService(Options{MaxWait: 2 * time.Second})
	pw, done := stalledRun(t, svc, "first.csv")

	type result struct {
		sess *Session
		err  error
	}
	second := make(chan result, 1)
	go func() {
		sess, err := svc.Process(context.Background(), "second.csv",
			strings.NewReader(rosterCSV(t, roster{"S2", "CS", "Bob", "Jones", "Y2", ""})),
			NewFilterConfig(nil, true))
		second <- result{sess, err}
	}()

	require.Eventually(t, func() bool {
		return svc.LimiterStatus().Waiting == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	finish(t, pw, done)

	select {
	case r := <-second:
		require.NoError(t, r.err)
		assert.GreaterOrEqual(t, r.sess.Info().QueuedMS, int64(20))
	case <-time.After(time.Second):
		t.Fatal("queued run was not admitted")
	}
	assert.Equal(t, 0, svc.LimiterStatus().Waiting)
}

func TestRunLimiter_RejectsAfterMaxWait(t *testing.T) {
	svc, _ := newTestService(t, nil)
	pw, done := stalledRun(t, svc, "first.csv")
	defer finish(t, pw, done)

	start := time.Now()
	_, err := svc.Process(context.Background(), "second.csv", strings.NewReader(rosterCSV(t)), FilterConfig{})

	assert.True(t, errors.Is(err, ErrTooManyRuns), "got %v", err)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, 0, svc.LimiterStatus().Waiting)
}

func TestRunLimiter_CancelWhileQueued(t *testing.T) {
	svc := NewService(Options{MaxWait: 5 * time.Second})
	pw, done := stalledRun(t, svc, "first.csv")
	defer finish(t, pw, done)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := svc.Process(ctx, "second.csv", strings.NewReader(rosterCSV(t)), FilterConfig{})
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		return svc.LimiterStatus().Waiting == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(time.Second):
		t.Fatal("queued run ignored cancellation")
	}
}

func TestRunLimiter_WaitForRuns(t *testing.T) {
	svc, _ := newTestService(t, nil)
	require.NoError(t, svc.WaitForRuns(context.Background()), "idle service drains at once")

	pw, done := stalledRun(t, svc, "first.csv")

	short, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.True(t, errors.Is(svc.WaitForRuns(short), context.DeadlineExceeded))

	drained := make(chan error, 1)
	go func() { drained <- svc.WaitForRuns(context.Background()) }()

	select {
	case <-drained:
		t.Fatal("WaitForRuns returned while a run held its slot")
	case <-time.After(30 * time.Millisecond):
	}

	finish(t, pw, done)
	select {
	case err := <-drained:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitForRuns did not return after the run finished")
	}
}

func TestRunLimiter_ReleaseIsIdempotent(t *testing.T) {
	l := NewRunLimiter(2, time.Second)

	release, queued, err := l.Admit(context.Background(), "a.csv")
	require.NoError(t, err)
	assert.Less(t, queued, 50*time.Millisecond)

	release()
	release()
	assert.Equal(t, 2, l.Status().Available)
}
