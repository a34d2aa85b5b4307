package scheduler

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"nathanbeddoewebdev/payq/internal/actionqueue"
	"nathanbeddoewebdev/payq/internal/auditlog"
)

type fakeProcessor struct {
	mu       sync.Mutex
	sweeps   int
	batch    int
	orders   []string
	triggers []string
	sweepErr error
	panicOn  string

	swept     chan struct{}
	processed chan string
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		swept:     make(chan struct{}, 16),
		processed: make(chan string, 16),
	}
}

func (f *fakeProcessor) ProcessOrder(ctx context.Context, orderRef string) (bool, error) {
	f.mu.Lock()
	f.orders = append(f.orders, orderRef)
	f.triggers = append(f.triggers, auditlog.MetadataFromContext(ctx).Trigger)
	panicOn := f.panicOn
	f.mu.Unlock()
	defer notify(f.processed, orderRef)
	if orderRef == panicOn {
		panic("boom")
	}
	return true, nil
}

func (f *fakeProcessor) ProcessAll(ctx context.Context, batchSize int) (actionqueue.Tally, error) {
	f.mu.Lock()
	f.sweeps++
	f.batch = batchSize
	err := f.sweepErr
	f.mu.Unlock()
	if got := auditlog.MetadataFromContext(ctx).Trigger; got != auditlog.TriggerSweep {
		return actionqueue.Tally{}, errors.New("sweep context missing trigger, got " + got)
	}
	notify(f.swept, struct{}{})
	return actionqueue.Tally{Processed: 2, Failed: 1}, err
}

func notify[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func discardLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for scheduler")
	}
	var zero T
	return zero
}

func startScheduler(t *testing.T, s *Scheduler) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return func() error {
		stop()
		return waitFor(t, done)
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(newFakeProcessor(), Config{}, nil)
	if s.cfg.Interval != DefaultInterval {
		t.Errorf("Interval = %s, want %s", s.cfg.Interval, DefaultInterval)
	}
	if s.cfg.BatchSize != actionqueue.DefaultBatchSize {
		t.Errorf("BatchSize = %d, want %d", s.cfg.BatchSize, actionqueue.DefaultBatchSize)
	}
	if cap(s.triggers) != DefaultQueueSize {
		t.Errorf("queue size = %d, want %d", cap(s.triggers), DefaultQueueSize)
	}
	if s.logger == nil {
		t.Error("expected default logger")
	}
}

func TestRun_SweepsImmediately(t *testing.T) {
	proc := newFakeProcessor()
	s := New(proc, Config{Interval: time.Hour, BatchSize: 7}, discardLogger())
	stop := startScheduler(t, s)

	waitFor(t, proc.swept)

	if err := stop(); err != nil {
		t.Fatalf("Run returned %v, want nil on cancel", err)
	}
	proc.mu.Lock()
	defer proc.mu.Unlock()
	if proc.batch != 7 {
		t.Errorf("batch size = %d, want 7", proc.batch)
	}
	st := s.Status()
	if st.Running {
		t.Error("expected Running=false after Run returns")
	}
	if st.LastTally != (actionqueue.Tally{Processed: 2, Failed: 1}) {
		t.Errorf("LastTally = %+v", st.LastTally)
	}
	if st.LastSweep.IsZero() {
		t.Error("expected LastSweep to be set")
	}
}

func TestRun_SweepsOnInterval(t *testing.T) {
	proc := newFakeProcessor()
	s := New(proc, Config{Interval: 10 * time.Millisecond}, discardLogger())
	stop := startScheduler(t, s)
	defer stop()

	for range 3 {
		waitFor(t, proc.swept)
	}
}

func TestSweepNow(t *testing.T) {
	proc := newFakeProcessor()
	s := New(proc, Config{Interval: time.Hour}, discardLogger())
	stop := startScheduler(t, s)
	defer stop()

	waitFor(t, proc.swept)
	if !s.SweepNow() {
		t.Fatal("SweepNow = false, want true")
	}
	waitFor(t, proc.swept)
}

func TestSweepNow_Coalesces(t *testing.T) {
	s := New(newFakeProcessor(), Config{}, discardLogger())
	if !s.SweepNow() {
		t.Fatal("first SweepNow = false")
	}
	if s.SweepNow() {
		t.Error("second SweepNow = true, want false while one is pending")
	}
}

func TestSweepError_Recorded(t *testing.T) {
	proc := newFakeProcessor()
	proc.sweepErr = errors.New("database is locked")
	s := New(proc, Config{Interval: time.Hour}, discardLogger())
	stop := startScheduler(t, s)

	waitFor(t, proc.swept)
	if err := stop(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := s.Status().LastError; got != "database is locked" {
		t.Errorf("LastError = %q", got)
	}
}

func TestTrigger_ProcessesOrder(t *testing.T) {
	proc := newFakeProcessor()
	s := New(proc, Config{Interval: time.Hour}, discardLogger())
	stop := startScheduler(t, s)
	defer stop()

	if !s.Trigger("100") {
		t.Fatal("Trigger = false")
	}
	if got := waitFor(t, proc.processed); got != "100" {
		t.Fatalf("processed %q, want 100", got)
	}
	proc.mu.Lock()
	defer proc.mu.Unlock()
	if proc.triggers[0] != auditlog.TriggerEvent {
		t.Errorf("trigger = %q, want %q", proc.triggers[0], auditlog.TriggerEvent)
	}
}

func TestTrigger_DeduplicatesQueuedOrders(t *testing.T) {
	s := New(newFakeProcessor(), Config{QueueSize: 4}, discardLogger())
	for range 3 {
		if !s.Trigger("100") {
			t.Fatal("Trigger = false")
		}
	}
	if got := len(s.triggers); got != 1 {
		t.Errorf("queued = %d, want 1", got)
	}
	if got := s.Status().QueuedTriggers; got != 1 {
		t.Errorf("QueuedTriggers = %d, want 1", got)
	}
}

func TestTrigger_FullQueue(t *testing.T) {
	s := New(newFakeProcessor(), Config{QueueSize: 2}, discardLogger())
	s.Trigger("1")
	s.Trigger("2")
	if s.Trigger("3") {
		t.Error("Trigger on full queue = true, want false")
	}
}

func TestTrigger_PanicDoesNotStopLoop(t *testing.T) {
	proc := newFakeProcessor()
	proc.panicOn = "bad"
	s := New(proc, Config{Interval: time.Hour}, discardLogger())
	stop := startScheduler(t, s)
	defer stop()

	s.Trigger("bad")
	waitFor(t, proc.processed)
	s.Trigger("good")
	if got := waitFor(t, proc.processed); got != "good" {
		t.Errorf("processed %q, want good", got)
	}
}
