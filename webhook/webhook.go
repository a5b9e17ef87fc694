package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/finchinslc/openclaw-board/domain"
)

// Event names a task lifecycle event.
type Event string

const (
	EventTaskCreated       Event = "task.created"
	EventTaskUpdated       Event = "task.updated"
	EventTaskStatusChanged Event = "task.status_changed"
	EventTaskDeleted       Event = "task.deleted"
)

func (e Event) Valid() bool {
	switch e {
	case EventTaskCreated, EventTaskUpdated, EventTaskStatusChanged, EventTaskDeleted:
		return true
	}
	return false
}

const (
	HeaderEvent     = "X-OpenClaw-Event"
	HeaderDelivery  = "X-OpenClaw-Delivery"
	HeaderSignature = "X-OpenClaw-Signature"

	// DefaultTimeout bounds a single delivery.
	DefaultTimeout = 10 * time.Second

	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// Notifier receives task events. Implementations must not block the caller.
type Notifier interface {
	Send(event Event, task domain.TaskSummary, changes []domain.Change)
}

// Multi fans an event out to several notifiers.
type Multi []Notifier

func (m Multi) Send(event Event, task domain.TaskSummary, changes []domain.Change) {
	for _, n := range m {
		if n != nil {
			n.Send(event, task, changes)
		}
	}
}

// Payload is the JSON body posted to every endpoint. Changes is a pointer so
// an explicitly empty change list still serializes as [].
type Payload struct {
	Event     Event              `json:"event"`
	Timestamp string             `json:"timestamp"`
	Task      domain.TaskSummary `json:"task"`
	Changes   *[]domain.Change   `json:"changes,omitempty"`
}

// NewPayload builds a payload. A nil changes slice omits the changes key.
func NewPayload(event Event, task domain.TaskSummary, changes []domain.Change, now time.Time) Payload {
	p := Payload{
		Event:     event,
		Timestamp: now.UTC().Format(timestampLayout),
		Task:      task,
	}
	if changes != nil {
		c := changes
		p.Changes = &c
	}
	return p
}

// Sign returns the signature header value for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Dispatcher delivers task events to the configured webhook endpoints.
type Dispatcher struct {
	client    *http.Client
	logger    log.FieldLogger
	timeout   time.Duration
	endpoints func() []Endpoint
	now       func() time.Time
	wg        sync.WaitGroup
}

type Option func(*Dispatcher)

// WithTimeout overrides the per-delivery timeout.
func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(disp *Dispatcher) {
		if c != nil {
			disp.client = c
		}
	}
}

// WithEndpoints replaces the environment lookup. The function is called on
// every Send.
func WithEndpoints(fn func() []Endpoint) Option {
	return func(disp *Dispatcher) {
		if fn != nil {
			disp.endpoints = fn
		}
	}
}

func NewDispatcher(logger log.FieldLogger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = log.StandardLogger()
	}
	d := &Dispatcher{
		client:    &http.Client{},
		logger:    logger,
		timeout:   DefaultTimeout,
		endpoints: EndpointsFromEnv,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send posts the event to every accepting endpoint and returns without
// waiting for any delivery. Failures are logged, never returned.
func (d *Dispatcher) Send(event Event, task domain.TaskSummary, changes []domain.Change) {
	if !event.Valid() {
		d.logger.WithField("event", event).Warn("dropping unknown webhook event")
		return
	}
	endpoints := d.endpoints()
	if len(endpoints) == 0 {
		return
	}
	body, err := sonic.Marshal(NewPayload(event, task, changes, d.now()))
	if err != nil {
		d.logger.WithError(err).WithField("event", event).Error("encode webhook payload")
		return
	}
	for _, ep := range endpoints {
		if !ep.Accepts(event) {
			continue
		}
		d.wg.Add(1)
		go func(ep Endpoint) {
			defer d.wg.Done()
			d.deliver(ep, event, body)
		}(ep)
	}
}

// Wait blocks until every delivery started so far has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ep Endpoint, event Event, body []byte) {
	delivery := uuid.NewString()
	entry := d.logger.WithFields(log.Fields{
		"url":      ep.URL,
		"event":    event,
		"delivery": delivery,
	})

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		entry.WithError(err).Error("webhook delivery failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, string(event))
	req.Header.Set(HeaderDelivery, delivery)
	if ep.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(body, ep.Secret))
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		entry.WithError(err).WithField("elapsed", time.Since(start)).Error("webhook delivery failed")
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	entry.WithFields(log.Fields{
		"status":  resp.StatusCode,
		"elapsed": time.Since(start),
	}).Debug("webhook delivered")
}
