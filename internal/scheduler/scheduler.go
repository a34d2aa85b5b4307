// Package scheduler drives the action queue in serve mode: a periodic
// sweep over every order with pending work, plus on-demand processing of
// single orders when the order platform reports a status change.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"nathanbeddoewebdev/payq/internal/actionqueue"
	"nathanbeddoewebdev/payq/internal/auditlog"
)

const (
	DefaultInterval  = 5 * time.Minute
	DefaultQueueSize = 256
)

// Processor is the part of actionqueue.Queue the scheduler drives.
type Processor interface {
	ProcessOrder(ctx context.Context, orderRef string) (bool, error)
	ProcessAll(ctx context.Context, batchSize int) (actionqueue.Tally, error)
}

// Config controls scheduling.
type Config struct {
	Interval  time.Duration // time between sweeps
	BatchSize int           // orders per sweep page
	QueueSize int           // max distinct orders waiting for on-demand processing
}

// Status is a snapshot for health reporting.
type Status struct {
	Running        bool              `json:"running"`
	LastSweep      time.Time         `json:"last_sweep,omitzero"`
	LastTally      actionqueue.Tally `json:"last_tally"`
	LastError      string            `json:"last_error,omitempty"`
	QueuedTriggers int               `json:"queued_triggers"`
}

// Scheduler runs sweeps and on-demand triggers until its context ends.
type Scheduler struct {
	proc   Processor
	cfg    Config
	logger *log.Logger

	triggers chan string
	sweepReq chan struct{}

	mu     sync.Mutex
	queued map[string]struct{}
	status Status
}

// New creates a Scheduler. A nil logger means log.Default().
func New(proc Processor, cfg Config, logger *log.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = actionqueue.DefaultBatchSize
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		proc:     proc,
		cfg:      cfg,
		logger:   logger,
		triggers: make(chan string, cfg.QueueSize),
		sweepReq: make(chan struct{}, 1),
		queued:   make(map[string]struct{}),
	}
}

// Trigger requests processing of one order. It never blocks. It returns
// false when the trigger queue is full; the next sweep picks the order
// up anyway. An order already waiting is not queued twice.
func (s *Scheduler) Trigger(orderRef string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queued[orderRef]; ok {
		return true
	}
	select {
	case s.triggers <- orderRef:
		s.queued[orderRef] = struct{}{}
		return true
	default:
		return false
	}
}

// SweepNow requests an immediate sweep. It returns false when one is
// already requested.
func (s *Scheduler) SweepNow() bool {
	select {
	case s.sweepReq <- struct{}{}:
		return true
	default:
		return false
	}
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.QueuedTriggers = len(s.queued)
	return st
}

// Run sweeps immediately, then every Interval, while serving triggers.
// It returns nil when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.setRunning(true)
	defer s.setRunning(false)

	s.logger.Printf("scheduler started: interval=%s batch=%d", s.cfg.Interval, s.cfg.BatchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.sweepLoop(gctx) })
	g.Go(func() error { return s.triggerLoop(gctx) })

	err := g.Wait()
	s.logger.Printf("scheduler stopping: %v", ctx.Err())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Scheduler) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.sweepReq:
			s.sweep(ctx)
			ticker.Reset(s.cfg.Interval)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	ctx = auditlog.WithTrigger(ctx, auditlog.TriggerSweep)
	start := time.Now()
	tally, err := s.proc.ProcessAll(ctx, s.cfg.BatchSize)
	failed := err != nil && !errors.Is(err, context.Canceled)

	s.mu.Lock()
	s.status.LastSweep = start
	s.status.LastTally = tally
	s.status.LastError = ""
	if failed {
		s.status.LastError = err.Error()
	}
	s.mu.Unlock()

	switch {
	case failed:
		s.logger.Printf("scheduler: sweep failed after %s: %s: %v", time.Since(start).Round(time.Millisecond), tally, err)
	case tally != (actionqueue.Tally{}):
		s.logger.Printf("scheduler: sweep done in %s: %s", time.Since(start).Round(time.Millisecond), tally)
	}
}

func (s *Scheduler) triggerLoop(ctx context.Context) error {
	ctx = auditlog.WithTrigger(ctx, auditlog.TriggerEvent)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ref := <-s.triggers:
			s.mu.Lock()
			delete(s.queued, ref)
			s.mu.Unlock()
			s.processOne(ctx, ref)
		}
	}
}

func (s *Scheduler) processOne(ctx context.Context, orderRef string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("scheduler: panic processing order=%s: %v", orderRef, r)
		}
	}()
	ctx = auditlog.WithMetadata(ctx, auditlog.Metadata{OrderRef: orderRef})
	if _, err := s.proc.ProcessOrder(ctx, orderRef); err != nil {
		s.logger.Printf("scheduler: order=%s: %v", orderRef, err)
	}
}

func (s *Scheduler) setRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Running = running
}
