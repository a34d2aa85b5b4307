package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"

	"nathanbeddoewebdev/payq/internal/actionqueue"
	"nathanbeddoewebdev/payq/internal/notify"
	"nathanbeddoewebdev/payq/internal/orderstore"
	"nathanbeddoewebdev/payq/internal/remote"
	"nathanbeddoewebdev/payq/internal/scheduler"
)

const testMethod = "creditpay"

type fakeScheduler struct {
	mu        sync.Mutex
	triggered []string
	sweeps    int
	running   bool
}

func (f *fakeScheduler) Trigger(orderRef string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggered = append(f.triggered, orderRef)
	return true
}

func (f *fakeScheduler) SweepNow() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return f.sweeps == 1
}

func (f *fakeScheduler) Status() scheduler.Status {
	return scheduler.Status{Running: f.running}
}

type testServer struct {
	store  *orderstore.Store
	queue  *actionqueue.Queue
	sched  *fakeScheduler
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := orderstore.OpenAt(filepath.Join(t.TempDir(), "payq.db"))
	if err != nil {
		t.Fatalf("OpenAt: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := log.New(io.Discard, "", 0)
	// The remote client is never called: events only enqueue and trigger.
	client := remote.NewClient("http://127.0.0.1:1", "sk_test")
	q := actionqueue.New(store, client, notify.NewWriter(io.Discard),
		actionqueue.Config{PaymentMethod: testMethod},
		actionqueue.WithLogger(logger))

	sched := &fakeScheduler{running: true}
	srv := NewServer(q, store, sched, logger)
	return &testServer{store: store, queue: q, sched: sched, router: srv.Handler()}
}

func (ts *testServer) createOrder(t *testing.T, ref, method string) {
	t.Helper()
	if err := ts.store.CreateOrder(context.Background(), ref, method, ""); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, resp
}

func TestHandleEvent_EnqueuesAndTriggers(t *testing.T) {
	ts := newTestServer(t)
	ts.createOrder(t, "100", testMethod)

	w, resp := ts.do(t, http.MethodPost, "/v1/orders/100/events",
		`{"transition":"shipped","data":{"tracking_number":"1Z999"}}`)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body=%s", w.Code, w.Body.String())
	}
	if resp["queued"] != "shipped" || resp["triggered"] != true {
		t.Errorf("unexpected response: %v", resp)
	}

	pending, err := ts.store.LoadPending(context.Background(), "100")
	if err != nil {
		t.Fatalf("LoadPending: %v", err)
	}
	if len(pending) != 1 || pending[0].Kind != actionqueue.KindShipped {
		t.Fatalf("pending = %+v", pending)
	}
	if diff := cmp.Diff(map[string]string{"tracking_number": "1Z999"}, pending[0].Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"100"}, ts.sched.triggered); diff != "" {
		t.Errorf("triggered mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleEvent_EmptyBodyOnlyTriggers(t *testing.T) {
	ts := newTestServer(t)
	ts.createOrder(t, "100", testMethod)

	w, resp := ts.do(t, http.MethodPost, "/v1/orders/100/events", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body=%s", w.Code, w.Body.String())
	}
	if _, ok := resp["queued"]; ok {
		t.Errorf("expected no queued field, got %v", resp)
	}
	if len(ts.sched.triggered) != 1 {
		t.Errorf("expected one trigger, got %v", ts.sched.triggered)
	}
}

func TestHandleEvent_NotApplicable(t *testing.T) {
	ts := newTestServer(t)
	ts.createOrder(t, "100", "paypal")

	w, resp := ts.do(t, http.MethodPost, "/v1/orders/100/events", `{"transition":"confirm"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if resp["queued"] != false {
		t.Errorf("queued = %v, want false", resp["queued"])
	}
	if len(ts.sched.triggered) != 0 {
		t.Errorf("expected no trigger for a foreign order, got %v", ts.sched.triggered)
	}
}

func TestHandleEvent_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"unknown order", "/v1/orders/404/events", `{"transition":"confirm"}`, http.StatusNotFound, "order not found"},
		{"invalid ref", "/v1/orders/-bad/events", "", http.StatusBadRequest, "alphanumeric"},
		{"unknown kind", "/v1/orders/100/events", `{"transition":"teleport"}`, http.StatusBadRequest, "unknown action kind"},
		{"malformed body", "/v1/orders/100/events", `{"transition":`, http.StatusBadRequest, "invalid event body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.createOrder(t, "100", testMethod)

			w, resp := ts.do(t, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d; body=%s", w.Code, tt.wantCode, w.Body.String())
			}
			msg, _ := resp["error"].(string)
			if !strings.Contains(msg, tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", msg, tt.wantErr)
			}
			if len(ts.sched.triggered) != 0 {
				t.Errorf("expected no trigger, got %v", ts.sched.triggered)
			}
		})
	}
}

func TestHandleGetOrder(t *testing.T) {
	ts := newTestServer(t)
	ts.createOrder(t, "100", testMethod)

	failedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pending := []actionqueue.ActionRecord{
		{Kind: actionqueue.KindShipped, CreatedAt: failedAt.Add(-time.Hour), FailedAt: &failedAt, FailedCount: 1},
		{Kind: actionqueue.KindInvoice, CreatedAt: failedAt.Add(-time.Hour), FailedAt: &failedAt, FailedCount: 3},
	}
	if err := ts.store.SavePending(context.Background(), "100", pending); err != nil {
		t.Fatalf("SavePending: %v", err)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/orders/100", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var got orderView
	if err := json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != orderstore.DefaultStatus || got.PaymentMethod != testMethod {
		t.Errorf("order = %+v", got)
	}
	if len(got.Pending) != 2 || len(got.Done) != 0 {
		t.Fatalf("pending=%d done=%d", len(got.Pending), len(got.Done))
	}
	if got.Pending[0].Broken || got.Pending[0].NextAttempt == nil {
		t.Errorf("shipped: broken=%v next=%v", got.Pending[0].Broken, got.Pending[0].NextAttempt)
	}
	if want := failedAt.Add(actionqueue.DefaultRetryInterval); !got.Pending[0].NextAttempt.Equal(want) {
		t.Errorf("next attempt = %s, want %s", got.Pending[0].NextAttempt, want)
	}
	if !got.Pending[1].Broken || got.Pending[1].NextAttempt != nil {
		t.Errorf("invoice: broken=%v next=%v", got.Pending[1].Broken, got.Pending[1].NextAttempt)
	}
}

func TestHandleGetOrder_NotFound(t *testing.T) {
	ts := newTestServer(t)
	w, _ := ts.do(t, http.MethodGet, "/v1/orders/404", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHandleSweep(t *testing.T) {
	ts := newTestServer(t)

	w, resp := ts.do(t, http.MethodPost, "/v1/sweep", "")
	if w.Code != http.StatusAccepted || resp["accepted"] != true {
		t.Fatalf("first sweep: %d %v", w.Code, resp)
	}
	_, resp = ts.do(t, http.MethodPost, "/v1/sweep", "")
	if resp["accepted"] != false {
		t.Errorf("second sweep accepted = %v, want false", resp["accepted"])
	}
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)

	w, resp := ts.do(t, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || resp["status"] != "ok" {
		t.Fatalf("health: %d %v", w.Code, resp)
	}
	if resp["payment_method"] != testMethod {
		t.Errorf("payment_method = %v", resp["payment_method"])
	}

	ts.sched.running = false
	w, resp = ts.do(t, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusServiceUnavailable || resp["status"] != "stopped" {
		t.Errorf("stopped health: %d %v", w.Code, resp)
	}
}
