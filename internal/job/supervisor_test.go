package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arcafs/arca/internal/command"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForState(t *testing.T, s *Supervisor, id string, want State) Status {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		st, err := s.Status(id)
		if err != nil {
			t.Fatalf("Status(%s) failed: %v", id, err)
		}
		if st.State == want {
			return st
		}
		if st.State.Terminal() {
			t.Fatalf("job %s reached %s, want %s (error: %s)", id, st.State, want, st.Error)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, want)
	return Status{}
}

func submitFunc(t *testing.T, s *Supervisor, key command.Key, scope string, fn RunnerFunc) Handle {
	t.Helper()
	h, err := s.Submit(Request{Key: key, Scope: scope, Runner: fn})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if h.State != StatePending {
		t.Fatalf("handle state = %s, want pending", h.State)
	}
	return h
}

func TestSupervisor_RunsJobToCompletion(t *testing.T) {
	s := NewSupervisor(2, testLogger())
	defer s.Close()

	h := submitFunc(t, s, command.KeyIdentifyUniqueFiles, "/srv/a", func(ctx context.Context, rep *Reporter) (Summary, error) {
		rep.SetTotal(2)
		rep.Advance(2, "done")
		return Summary{FilesIdentified: 2}, nil
	})

	st := waitForState(t, s, h.JobID, StateCompleted)
	if st.Summary == nil || st.Summary.FilesIdentified != 2 {
		t.Errorf("summary = %+v", st.Summary)
	}
	if st.Progress == nil || st.Progress.Completed != 2 || st.Progress.Total != 2 {
		t.Errorf("progress = %+v", st.Progress)
	}
	if st.Error != "" {
		t.Errorf("unexpected error %q", st.Error)
	}
}

func TestSupervisor_SameScopeSerialized(t *testing.T) {
	s := NewSupervisor(4, testLogger())
	defer s.Close()

	release := make(chan struct{})
	first := submitFunc(t, s, command.KeyGenerateThumbsForLocation, "/srv/a", func(ctx context.Context, rep *Reporter) (Summary, error) {
		<-release
		return Summary{}, nil
	})
	second := submitFunc(t, s, command.KeyGenerateThumbsForLocation, "/srv/a", func(ctx context.Context, rep *Reporter) (Summary, error) {
		return Summary{}, nil
	})

	waitForState(t, s, first.JobID, StateRunning)

	// The queued job must not start while its predecessor runs.
	time.Sleep(50 * time.Millisecond)
	st, _ := s.Status(second.JobID)
	if st.State != StatePending {
		t.Fatalf("queued job state = %s, want pending", st.State)
	}

	close(release)
	waitForState(t, s, first.JobID, StateCompleted)
	waitForState(t, s, second.JobID, StateCompleted)
}

// Rapid submissions into one scope must each run exactly once, with no
// overlap, even when a submission lands just as the scope queue drains.
func TestSupervisor_RapidSameScopeSubmissions(t *testing.T) {
	s := NewSupervisor(4, testLogger())
	defer s.Close()

	const (
		submitters = 4
		perWorker  = 25
	)
	var (
		runs    atomic.Int32
		active  atomic.Int32
		overlap atomic.Bool
	)
	run := func(ctx context.Context, rep *Reporter) (Summary, error) {
		if active.Add(1) > 1 {
			overlap.Store(true)
		}
		runs.Add(1)
		active.Add(-1)
		return Summary{}, nil
	}

	handles := make(chan Handle, submitters*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < perWorker; n++ {
				h, err := s.Submit(Request{Key: command.KeyIdentifyUniqueFiles, Scope: "/srv/a", Runner: RunnerFunc(run)})
				if err != nil {
					t.Errorf("Submit failed: %v", err)
					return
				}
				handles <- h
			}
		}()
	}
	wg.Wait()
	close(handles)

	for h := range handles {
		waitForState(t, s, h.JobID, StateCompleted)
	}
	if got := runs.Load(); got != submitters*perWorker {
		t.Errorf("runner executions = %d, want %d", got, submitters*perWorker)
	}
	if overlap.Load() {
		t.Error("same-scope jobs overlapped")
	}
}

func TestSupervisor_DisjointScopesRunConcurrently(t *testing.T) {
	s := NewSupervisor(2, testLogger())
	defer s.Close()

	barrier := make(chan struct{}, 2)
	proceed := make(chan struct{})
	run := func(ctx context.Context, rep *Reporter) (Summary, error) {
		barrier <- struct{}{}
		select {
		case <-proceed:
			return Summary{}, nil
		case <-ctx.Done():
			return Summary{}, ctx.Err()
		}
	}

	a := submitFunc(t, s, command.KeyIdentifyUniqueFiles, "/srv/a", run)
	b := submitFunc(t, s, command.KeyIdentifyUniqueFiles, "/srv/b", run)

	// Both runners reach the barrier only if they overlap.
	for i := 0; i < 2; i++ {
		select {
		case <-barrier:
		case <-time.After(3 * time.Second):
			t.Fatal("jobs in disjoint scopes did not overlap")
		}
	}
	close(proceed)
	waitForState(t, s, a.JobID, StateCompleted)
	waitForState(t, s, b.JobID, StateCompleted)
}

func TestSupervisor_CancelPendingJob(t *testing.T) {
	s := NewSupervisor(2, testLogger())
	defer s.Close()

	release := make(chan struct{})
	blocker := submitFunc(t, s, command.KeyIdentifyUniqueFiles, "/srv/a", func(ctx context.Context, rep *Reporter) (Summary, error) {
		<-release
		return Summary{}, nil
	})
	var ran atomic.Bool
	queued := submitFunc(t, s, command.KeyIdentifyUniqueFiles, "/srv/a", func(ctx context.Context, rep *Reporter) (Summary, error) {
		ran.Store(true)
		return Summary{}, nil
	})

	waitForState(t, s, blocker.JobID, StateRunning)
	if err := s.Cancel(queued.JobID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	st, _ := s.Status(queued.JobID)
	if st.State != StateCancelled {
		t.Fatalf("pending job state after cancel = %s", st.State)
	}

	close(release)
	waitForState(t, s, blocker.JobID, StateCompleted)
	time.Sleep(20 * time.Millisecond)
	if ran.Load() {
		t.Error("cancelled pending job still ran")
	}
}

func TestSupervisor_CancelRunningJobKeepsPartialWork(t *testing.T) {
	s := NewSupervisor(2, testLogger())
	defer s.Close()

	started := make(chan struct{})
	h := submitFunc(t, s, command.KeyGenerateThumbsForLocation, "/srv/a", func(ctx context.Context, rep *Reporter) (Summary, error) {
		close(started)
		<-ctx.Done()
		return Summary{ThumbsGenerated: 3}, ctx.Err()
	})

	<-started
	if err := s.Cancel(h.JobID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	st := waitForState(t, s, h.JobID, StateCancelled)
	if st.Summary == nil || st.Summary.ThumbsGenerated != 3 {
		t.Errorf("partial summary lost: %+v", st.Summary)
	}

	// Cancelling a terminal job is a no-op.
	if err := s.Cancel(h.JobID); err != nil {
		t.Errorf("cancel of terminal job errored: %v", err)
	}
}

func TestSupervisor_FailedRunner(t *testing.T) {
	s := NewSupervisor(2, testLogger())
	defer s.Close()

	h := submitFunc(t, s, command.KeyIdentifyUniqueFiles, "/srv/a", func(ctx context.Context, rep *Reporter) (Summary, error) {
		return Summary{FilesIdentified: 1}, fmt.Errorf("stat /tmp/missing: no such file or directory")
	})

	st := waitForState(t, s, h.JobID, StateFailed)
	if !strings.Contains(st.Error, "no such file") {
		t.Errorf("error = %q", st.Error)
	}
	if st.Summary == nil || st.Summary.FilesIdentified != 1 {
		t.Errorf("partial summary lost: %+v", st.Summary)
	}
}

func TestSupervisor_RunnerPanicBecomesFailure(t *testing.T) {
	s := NewSupervisor(2, testLogger())
	defer s.Close()

	h := submitFunc(t, s, command.KeyIdentifyUniqueFiles, "/srv/a", func(ctx context.Context, rep *Reporter) (Summary, error) {
		panic("boom")
	})

	st := waitForState(t, s, h.JobID, StateFailed)
	if !strings.Contains(st.Error, "panic") {
		t.Errorf("error = %q", st.Error)
	}

	// The supervisor survives and keeps scheduling.
	next := submitFunc(t, s, command.KeyIdentifyUniqueFiles, "/srv/a", func(ctx context.Context, rep *Reporter) (Summary, error) {
		return Summary{}, nil
	})
	waitForState(t, s, next.JobID, StateCompleted)
}

func TestSupervisor_StatusUnknownJob(t *testing.T) {
	s := NewSupervisor(2, testLogger())
	defer s.Close()
	if _, err := s.Status("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
	if err := s.Cancel("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("cancel err = %v, want ErrJobNotFound", err)
	}
}

func TestSupervisor_ActiveForScope(t *testing.T) {
	s := NewSupervisor(2, testLogger())
	defer s.Close()

	release := make(chan struct{})
	h := submitFunc(t, s, command.KeyGenerateThumbsForLocation, "/srv/a", func(ctx context.Context, rep *Reporter) (Summary, error) {
		<-release
		return Summary{}, nil
	})

	waitForState(t, s, h.JobID, StateRunning)
	if !s.ActiveForScope("/srv/a") {
		t.Error("running scope reported inactive")
	}
	if s.ActiveForScope("/srv/b") {
		t.Error("idle scope reported active")
	}

	close(release)
	waitForState(t, s, h.JobID, StateCompleted)
	if s.ActiveForScope("/srv/a") {
		t.Error("terminal scope reported active")
	}
}

func TestSupervisor_ClosedRejectsSubmissions(t *testing.T) {
	s := NewSupervisor(2, testLogger())
	s.Close()
	_, err := s.Submit(Request{
		Key:    command.KeyIdentifyUniqueFiles,
		Scope:  "/srv/a",
		Runner: RunnerFunc(func(ctx context.Context, rep *Reporter) (Summary, error) { return Summary{}, nil }),
	})
	if !errors.Is(err, ErrSupervisorClosed) {
		t.Errorf("err = %v, want ErrSupervisorClosed", err)
	}
}

func TestSupervisor_RejectsNilRunner(t *testing.T) {
	s := NewSupervisor(2, testLogger())
	defer s.Close()
	if _, err := s.Submit(Request{Key: command.KeyIdentifyUniqueFiles, Scope: "/srv/a"}); err == nil {
		t.Error("nil runner accepted")
	}
}
