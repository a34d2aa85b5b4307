package actionqueue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"slices"
	"sort"
	"sync"
	"time"
)

const testMethod = "creditpay"

// memOrder is the in-memory state of one order.
type memOrder struct {
	method  string
	status  string
	pending []ActionRecord
	done    []ActionRecord
	notes   []string
}

// memStore is an in-memory OrderStore for tests.
type memStore struct {
	mu     sync.Mutex
	orders map[string]*memOrder

	savePendingCalls int
	saveDoneCalls    int
	statusCalls      int

	// failLoad makes LoadPending fail for the listed refs.
	failLoad map[string]error
	// panicLoad makes LoadPending panic for the listed refs.
	panicLoad map[string]bool
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[string]*memOrder)}
}

func (s *memStore) addOrder(ref, method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[ref] = &memOrder{method: method, status: "processing"}
}

func (s *memStore) get(ref string) (*memOrder, error) {
	o, ok := s.orders[ref]
	if !ok {
		return nil, fmt.Errorf("mem: %s: %w", ref, ErrOrderNotFound)
	}
	return o, nil
}

func (s *memStore) PaymentMethod(_ context.Context, ref string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.get(ref)
	if err != nil {
		return "", err
	}
	return o.method, nil
}

func (s *memStore) LoadPending(_ context.Context, ref string) ([]ActionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicLoad[ref] {
		panic("boom")
	}
	if err := s.failLoad[ref]; err != nil {
		return nil, err
	}
	o, err := s.get(ref)
	if err != nil {
		return nil, err
	}
	return clone(o.pending), nil
}

func (s *memStore) SavePending(_ context.Context, ref string, records []ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.get(ref)
	if err != nil {
		return err
	}
	s.savePendingCalls++
	o.pending = clone(records)
	return nil
}

func (s *memStore) LoadDone(_ context.Context, ref string) ([]ActionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.get(ref)
	if err != nil {
		return nil, err
	}
	return clone(o.done), nil
}

func (s *memStore) SaveDone(_ context.Context, ref string, records []ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.get(ref)
	if err != nil {
		return err
	}
	s.saveDoneCalls++
	o.done = clone(records)
	return nil
}

func (s *memStore) AppendNote(_ context.Context, ref, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.get(ref)
	if err != nil {
		return err
	}
	o.notes = append(o.notes, text)
	return nil
}

func (s *memStore) SetStatus(_ context.Context, ref, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.get(ref)
	if err != nil {
		return err
	}
	s.statusCalls++
	o.status = status
	return nil
}

func (s *memStore) ListPendingOrders(_ context.Context, method, after string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var refs []string
	for ref, o := range s.orders {
		if o.method == method && len(o.pending) > 0 && ref > after {
			refs = append(refs, ref)
		}
	}
	sort.Strings(refs)
	if len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

func (s *memStore) order(ref string) memOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[ref]
	return memOrder{
		method:  o.method,
		status:  o.status,
		pending: clone(o.pending),
		done:    clone(o.done),
		notes:   slices.Clone(o.notes),
	}
}

func clone(records []ActionRecord) []ActionRecord {
	if records == nil {
		return nil
	}
	return slices.Clone(records)
}

// fakeRemote records calls and returns scripted errors per kind.
type fakeRemote struct {
	mu     sync.Mutex
	calls  []string
	errs   map[Kind]error
	block  chan struct{}
	keys   []string
	panics bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{errs: make(map[Kind]error)}
}

func (f *fakeRemote) setErr(k Kind, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[k] = err
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRemote) call(ctx context.Context, ref string, k Kind) error {
	f.mu.Lock()
	f.calls = append(f.calls, ref+":"+string(k))
	f.keys = append(f.keys, IdempotencyKeyFromContext(ctx))
	err := f.errs[k]
	block := f.block
	panics := f.panics
	f.mu.Unlock()
	if panics {
		panic("remote exploded")
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeRemote) Confirm(ctx context.Context, ref string, _ map[string]string) error {
	return f.call(ctx, ref, KindConfirm)
}

func (f *fakeRemote) ReportShipped(ctx context.Context, ref string, _ map[string]string) error {
	return f.call(ctx, ref, KindShipped)
}

func (f *fakeRemote) CreateInvoice(ctx context.Context, ref string, _ map[string]string) error {
	return f.call(ctx, ref, KindInvoice)
}

func (f *fakeRemote) Cancel(ctx context.Context, ref string, _ map[string]string) error {
	return f.call(ctx, ref, KindCancel)
}

func (f *fakeRemote) Refund(ctx context.Context, ref string, _ map[string]string) error {
	return f.call(ctx, ref, KindRefund)
}

func (f *fakeRemote) ReverseCancel(ctx context.Context, ref string, _ map[string]string) error {
	return f.call(ctx, ref, KindReverseCancel)
}

// fakeNotifier counts notifications. With hang set it blocks until its
// context is done.
type fakeNotifier struct {
	mu      sync.Mutex
	records []ActionRecord
	err     error
	hang    bool
}

func (n *fakeNotifier) Notify(ctx context.Context, _ string, record ActionRecord) error {
	n.mu.Lock()
	n.records = append(n.records, record)
	err, hang := n.err, n.hang
	n.mu.Unlock()
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.records)
}

// fakeRecorder collects attempts.
type fakeRecorder struct {
	mu       sync.Mutex
	attempts []Attempt
}

func (r *fakeRecorder) RecordAttempt(_ context.Context, a Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
	return nil
}

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errConnection = errors.New("connection refused")

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// flakyStore fails SavePending while failPending is set.
type flakyStore struct {
	*memStore
	failPending error
}

func (s *flakyStore) SavePending(ctx context.Context, ref string, records []ActionRecord) error {
	if s.failPending != nil {
		return s.failPending
	}
	return s.memStore.SavePending(ctx, ref, records)
}

// atomicStore adds a single-step SaveLists to memStore.
type atomicStore struct {
	*memStore
	err   error
	calls int
}

func (s *atomicStore) SaveLists(_ context.Context, ref string, pending, done []ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	o, err := s.get(ref)
	if err != nil {
		return err
	}
	o.pending = clone(pending)
	o.done = clone(done)
	return nil
}
