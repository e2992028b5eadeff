package scheduler

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

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noop(context.Context) error { return nil }

// drain consumes results until the channel closes.
func drain(s *Scheduler) {
	for range s.Results() {
	}
}

func TestScheduler_StopBeforeStart(t *testing.T) {
	s := New([]Job{{Name: "a", Run: noop}}, time.Minute, 1, testLogger())

	// this must not panic
	s.Stop()
}

func TestScheduler_StopTwice(t *testing.T) {
	s := New([]Job{{Name: "a", Run: noop}}, time.Minute, 1, testLogger())
	s.Start(context.Background())

	go drain(s)

	s.Stop()
	s.Stop()
}

func TestScheduler_StopClosesResults(t *testing.T) {
	s := New([]Job{{Name: "a", Run: noop}}, time.Minute, 1, testLogger())
	s.Start(context.Background())

	go drain(s)
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	select {
	case _, ok := <-s.Results():
		if ok {
			t.Error("expected results channel to be closed after Stop()")
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for results channel to close")
	}
}

// TestScheduler_ConcurrentStartStop verifies that Start and Stop don't race.
// Run with: go test -race ./internal/scheduler/...
func TestScheduler_ConcurrentStartStop(t *testing.T) {
	for i := 0; i < 100; i++ {
		s := New([]Job{{Name: "a", Run: noop}}, time.Minute, 1, testLogger())

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Start(context.Background())
		}()
		go func() {
			defer wg.Done()
			s.Stop()
		}()
		wg.Wait()

		// Start may have won the race; stop again so the loop exits
		s.Stop()
		drain(s)
	}
}

func TestScheduler_StartTwiceRunsOnce(t *testing.T) {
	var runs atomic.Int32
	s := New([]Job{{Name: "a", Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}}, time.Hour, 1, testLogger())

	s.Start(context.Background())
	s.Start(context.Background()) // second call should be no-op

	select {
	case <-s.Results():
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for immediate run")
	}
	s.Stop()
	drain(s)

	if got := runs.Load(); got != 1 {
		t.Errorf("job ran %d times, want 1", got)
	}
}

func TestScheduler_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New([]Job{{Name: "a", Run: noop}}, time.Minute, 1, testLogger())
	s.Start(ctx)
	go drain(s)

	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Stop() did not complete after parent context cancellation")
	}
}

func TestScheduler_ReportsJobErrors(t *testing.T) {
	boom := errors.New("upstream unavailable")
	s := New([]Job{{Name: "failing", Run: func(context.Context) error { return boom }}}, time.Hour, 1, testLogger())
	s.Start(context.Background())

	var result Result
	select {
	case result = <-s.Results():
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for result")
	}
	s.Stop()
	drain(s)

	if result.Name != "failing" {
		t.Errorf("Name = %q, want %q", result.Name, "failing")
	}
	if !errors.Is(result.Err, boom) {
		t.Errorf("Err = %v, want %v", result.Err, boom)
	}
	if result.RanAt.IsZero() {
		t.Error("RanAt is zero")
	}
}

func TestScheduler_JobPanicRecovery(t *testing.T) {
	jobs := []Job{
		{Name: "panicking", Run: func(context.Context) error { panic("boom") }},
		{Name: "healthy", Run: noop},
		{Name: "no run"},
	}
	s := New(jobs, time.Hour, 3, testLogger())
	s.Start(context.Background())

	results := make(map[string]Result)
	for i := 0; i < len(jobs); i++ {
		select {
		case r := <-s.Results():
			results[r.Name] = r
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout waiting for result %d", i+1)
		}
	}
	s.Stop()
	drain(s)

	if err := results["panicking"].Err; err == nil || !strings.Contains(err.Error(), "correlation_id") {
		t.Errorf("panicking.Err = %v, want panic error with correlation_id", err)
	}
	if err := results["healthy"].Err; err != nil {
		t.Errorf("healthy.Err = %v, want nil", err)
	}
	if err := results["no run"].Err; err == nil {
		t.Error("no run.Err = nil, want error")
	}
}

func TestScheduler_RespectsMaxConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	run := func(context.Context) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return nil
	}

	jobs := make([]Job, 8)
	for i := range jobs {
		jobs[i] = Job{Name: fmt.Sprintf("job%d", i), Run: run}
	}

	s := New(jobs, time.Hour, 2, testLogger())
	s.Start(context.Background())
	for i := 0; i < len(jobs); i++ {
		select {
		case <-s.Results():
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout waiting for result %d", i+1)
		}
	}
	s.Stop()
	drain(s)

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", got)
	}
}

func TestScheduler_GCDCalculation(t *testing.T) {
	tests := []struct {
		name           string
		intervals      []time.Duration
		globalInterval time.Duration
		expectedBase   time.Duration
	}{
		{
			name:           "all same interval",
			intervals:      []time.Duration{10 * time.Second, 10 * time.Second},
			globalInterval: 10 * time.Second,
			expectedBase:   10 * time.Second,
		},
		{
			name:           "5s and 10s gives GCD of 5s",
			intervals:      []time.Duration{5 * time.Second, 10 * time.Second},
			globalInterval: 30 * time.Second,
			expectedBase:   5 * time.Second,
		},
		{
			name:           "with zero (default) uses global",
			intervals:      []time.Duration{6 * time.Second, 0},
			globalInterval: 9 * time.Second,
			expectedBase:   3 * time.Second,
		},
		{
			name:           "co-prime intervals floor at 1s",
			intervals:      []time.Duration{7 * time.Second, 11 * time.Second},
			globalInterval: 30 * time.Second,
			expectedBase:   time.Second,
		},
		{
			name:           "sub-second floors at 1s",
			intervals:      []time.Duration{200 * time.Millisecond},
			globalInterval: 30 * time.Second,
			expectedBase:   time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := make([]Job, len(tt.intervals))
			for i, interval := range tt.intervals {
				jobs[i] = Job{Name: fmt.Sprintf("job%d", i), Interval: interval, Run: noop}
			}

			s := New(jobs, tt.globalInterval, 1, testLogger())
			if base := s.calculateBaseInterval(); base != tt.expectedBase {
				t.Errorf("calculateBaseInterval() = %v, want %v", base, tt.expectedBase)
			}
		})
	}
}

func TestScheduler_GCDCalculation_NoJobs(t *testing.T) {
	s := New(nil, 20*time.Second, 1, testLogger())
	if base := s.calculateBaseInterval(); base != 20*time.Second {
		t.Errorf("calculateBaseInterval() = %v, want 20s", base)
	}
}

func TestScheduler_MixedIntervals(t *testing.T) {
	jobs := []Job{
		{Name: "Fast", Interval: 1 * time.Second, Run: noop},
		{Name: "Slow", Interval: 3 * time.Second, Run: noop},
	}

	s := New(jobs, 5*time.Second, 2, testLogger())
	s.Start(context.Background())

	counts := make(map[string]int)
	timeout := time.After(3500 * time.Millisecond)

collecting:
	for {
		select {
		case result, ok := <-s.Results():
			if !ok {
				break collecting
			}
			counts[result.Name]++
		case <-timeout:
			break collecting
		}
	}

	s.Stop()
	drain(s)

	// Fast (1s) should run ~4 times (immediate + 3 ticks in 3.5s)
	// Slow (3s) should run ~2 times (immediate + 1 tick in 3.5s)
	if counts["Fast"] < 3 {
		t.Errorf("Fast ran %d times, expected at least 3", counts["Fast"])
	}
	if counts["Slow"] > counts["Fast"] {
		t.Errorf("Slow ran %d times, Fast ran %d times - Slow should run less often",
			counts["Slow"], counts["Fast"])
	}
}
