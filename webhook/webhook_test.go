package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/finchinslc/openclaw-board/domain"
)

type captured struct {
	header http.Header
	body   []byte
}

type receiver struct {
	mu       sync.Mutex
	requests []captured
	srv      *httptest.Server
}

func newReceiver(t *testing.T) *receiver {
	t.Helper()
	r := &receiver{}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.requests = append(r.requests, captured{header: req.Header.Clone(), body: body})
		r.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func (r *receiver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func (r *receiver) last() captured {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[len(r.requests)-1]
}

func summary() domain.TaskSummary {
	return domain.Task{ID: "t1", TaskNumber: 7, Title: "Ship it", Status: domain.StatusTodo, Priority: domain.PriorityHigh, Origin: domain.OriginAI}.Summary()
}

func fixed(endpoints ...Endpoint) Option {
	return WithEndpoints(func() []Endpoint { return endpoints })
}

func TestSendWithoutEndpointsDoesNothing(t *testing.T) {
	var calls int32
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("unexpected call")
	})}
	logger, hook := test.NewNullLogger()
	d := NewDispatcher(logger, fixed(), WithHTTPClient(client))

	d.Send(EventTaskCreated, summary(), nil)
	d.Wait()

	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no network calls, got %d", calls)
	}
	if len(hook.AllEntries()) != 0 {
		t.Fatalf("expected no log entries, got %d", len(hook.AllEntries()))
	}
}

func TestSendDeliversHeadersAndBody(t *testing.T) {
	r := newReceiver(t)
	logger, _ := test.NewNullLogger()
	d := NewDispatcher(logger, fixed(Endpoint{URL: r.srv.URL}))
	d.now = func() time.Time { return time.Date(2026, 5, 6, 7, 8, 9, 120_000_000, time.FixedZone("X", 3600)) }

	d.Send(EventTaskCreated, summary(), nil)
	d.Wait()

	if r.count() != 1 {
		t.Fatalf("expected one delivery, got %d", r.count())
	}
	got := r.last()
	if ct := got.header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if ev := got.header.Get(HeaderEvent); ev != "task.created" {
		t.Fatalf("unexpected event header %q", ev)
	}
	if got.header.Get(HeaderDelivery) == "" {
		t.Fatalf("expected delivery id header")
	}
	if got.header.Get(HeaderSignature) != "" {
		t.Fatalf("expected no signature without secret")
	}

	var payload map[string]any
	if err := sonic.Unmarshal(got.body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["timestamp"] != "2026-05-06T06:08:09.120Z" {
		t.Fatalf("unexpected timestamp %v", payload["timestamp"])
	}
	if _, ok := payload["changes"]; ok {
		t.Fatalf("expected changes to be absent, got %s", got.body)
	}
	task, ok := payload["task"].(map[string]any)
	if !ok || task["id"] != "t1" || task["title"] != "Ship it" {
		t.Fatalf("unexpected task projection: %s", got.body)
	}
	if _, ok := task["comments"]; ok {
		t.Fatalf("task projection must not carry nested collections: %s", got.body)
	}
	if tags, ok := task["tags"].([]any); !ok || len(tags) != 0 {
		t.Fatalf("expected empty tags array, got %v", task["tags"])
	}
}

func TestSendDeliveryIDsAreUnique(t *testing.T) {
	a, b := newReceiver(t), newReceiver(t)
	logger, _ := test.NewNullLogger()
	d := NewDispatcher(logger, fixed(Endpoint{URL: a.srv.URL}, Endpoint{URL: b.srv.URL}))

	d.Send(EventTaskUpdated, summary(), []domain.Change{})
	d.Wait()

	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("expected one delivery per endpoint, got %d and %d", a.count(), b.count())
	}
	if a.last().header.Get(HeaderDelivery) == b.last().header.Get(HeaderDelivery) {
		t.Fatalf("expected distinct delivery ids")
	}
	if string(a.last().body) != string(b.last().body) {
		t.Fatalf("expected identical bodies across endpoints")
	}
}

func TestSendHonoursEventFilter(t *testing.T) {
	r := newReceiver(t)
	logger, _ := test.NewNullLogger()
	d := NewDispatcher(logger, fixed(Endpoint{URL: r.srv.URL, Events: []string{"task.deleted"}}))

	d.Send(EventTaskCreated, summary(), nil)
	d.Wait()
	if r.count() != 0 {
		t.Fatalf("expected filtered event to be skipped, got %d calls", r.count())
	}

	d.Send(EventTaskDeleted, summary(), nil)
	d.Wait()
	if r.count() != 1 {
		t.Fatalf("expected allowed event to be delivered, got %d calls", r.count())
	}
}

func TestSendSignsBody(t *testing.T) {
	r := newReceiver(t)
	logger, _ := test.NewNullLogger()
	d := NewDispatcher(logger, fixed(Endpoint{URL: r.srv.URL, Secret: "s3cret"}))

	d.Send(EventTaskStatusChanged, summary(), []domain.Change{{Field: "status", OldValue: "TODO", NewValue: "DONE"}})
	d.Wait()

	got := r.last()
	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(got.body)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if sig := got.header.Get(HeaderSignature); sig != want {
		t.Fatalf("signature = %q, want %q", sig, want)
	}
	if !strings.Contains(string(got.body), `"changes":[{"field":"status","oldValue":"TODO","newValue":"DONE"}]`) {
		t.Fatalf("unexpected changes encoding: %s", got.body)
	}
}

func TestSignChangesWithBody(t *testing.T) {
	body := []byte(`{"event":"task.created"}`)
	tampered := []byte(`{"event":"task.createe"}`)
	if Sign(body, "k") == Sign(tampered, "k") {
		t.Fatalf("expected signature to change with the body")
	}
	if !strings.HasPrefix(Sign(body, "k"), "sha256=") {
		t.Fatalf("expected sha256= prefix")
	}
}

func TestNewPayloadChangesPresence(t *testing.T) {
	now := time.Unix(0, 0)
	absent, _ := sonic.Marshal(NewPayload(EventTaskUpdated, summary(), nil, now))
	if strings.Contains(string(absent), `"changes"`) {
		t.Fatalf("nil changes must be omitted: %s", absent)
	}
	empty, _ := sonic.Marshal(NewPayload(EventTaskUpdated, summary(), []domain.Change{}, now))
	if !strings.Contains(string(empty), `"changes":[]`) {
		t.Fatalf("empty changes must be kept: %s", empty)
	}
}

func TestSendUnknownEventIsDropped(t *testing.T) {
	r := newReceiver(t)
	logger, hook := test.NewNullLogger()
	d := NewDispatcher(logger, fixed(Endpoint{URL: r.srv.URL}))

	d.Send(Event("task.exploded"), summary(), nil)
	d.Wait()

	if r.count() != 0 {
		t.Fatalf("expected no delivery for unknown event")
	}
	if e := hook.LastEntry(); e == nil || e.Level != log.WarnLevel {
		t.Fatalf("expected a warning for the unknown event")
	}
}

func TestSendTimesOutAndLogs(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	logger, hook := test.NewNullLogger()
	d := NewDispatcher(logger, fixed(Endpoint{URL: srv.URL}), WithTimeout(50*time.Millisecond))

	start := time.Now()
	d.Send(EventTaskCreated, summary(), nil)
	if elapsed := time.Since(start); elapsed > 40*time.Millisecond {
		t.Fatalf("Send blocked the caller for %v", elapsed)
	}
	d.Wait()

	var failed *log.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "webhook delivery failed" {
			failed = e
		}
	}
	if failed == nil {
		t.Fatalf("expected a delivery failure to be logged")
	}
	if failed.Level != log.ErrorLevel {
		t.Fatalf("unexpected level %v", failed.Level)
	}
	if failed.Data["url"] != srv.URL {
		t.Fatalf("expected url field, got %v", failed.Data["url"])
	}
	if err, ok := failed.Data[log.ErrorKey].(error); !ok || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", failed.Data[log.ErrorKey])
	}
}

func TestMultiFansOut(t *testing.T) {
	a, b := &recordingNotifier{}, &recordingNotifier{}
	Multi{a, nil, b}.Send(EventTaskDeleted, summary(), nil)
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("expected both notifiers to be called")
	}
}

type recordingNotifier struct {
	events []Event
}

func (r *recordingNotifier) Send(event Event, task domain.TaskSummary, changes []domain.Change) {
	r.events = append(r.events, event)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type fakeQueue struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeQueue) EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return azqueue.EnqueueMessagesResponse{}, f.err
	}
	f.messages = append(f.messages, content)
	return azqueue.EnqueueMessagesResponse{}, nil
}

func TestQueueSinkEnqueuesPayload(t *testing.T) {
	q := &fakeQueue{}
	logger, _ := test.NewNullLogger()
	sink := newQueueSink(q, logger, time.Second)

	sink.Send(EventTaskDeleted, summary(), nil)
	sink.Wait()

	if len(q.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(q.messages))
	}
	var p Payload
	if err := sonic.UnmarshalString(q.messages[0], &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Event != EventTaskDeleted || p.Task.ID != "t1" || p.Changes != nil {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestQueueSinkLogsFailures(t *testing.T) {
	q := &fakeQueue{err: errors.New("queue down")}
	logger, hook := test.NewNullLogger()
	sink := newQueueSink(q, logger, time.Second)

	sink.Send(EventTaskCreated, summary(), nil)
	sink.Wait()

	if e := hook.LastEntry(); e == nil || e.Message != "enqueue task event failed" {
		t.Fatalf("expected enqueue failure to be logged")
	}
}
