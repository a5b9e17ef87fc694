// Package broadcast pushes board events to connected browser clients.
package broadcast

import "sync/atomic"

// Event names sent to clients.
const (
	EventTaskCreated = "task:created"
	EventTaskUpdated = "task:updated"
	EventTaskDeleted = "task:deleted"
)

// Broadcaster notifies connected clients. Implementations must not block on
// slow clients.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// Func adapts a plain function to Broadcaster.
type Func func(event string, payload any)

func (f Func) Broadcast(event string, payload any) { f(event, payload) }

type registered struct {
	b Broadcaster
}

var current atomic.Pointer[registered]

// Set installs the process-wide broadcaster. Only the first call wins; it
// reports whether b was installed.
func Set(b Broadcaster) bool {
	if b == nil {
		return false
	}
	return current.CompareAndSwap(nil, &registered{b: b})
}

// Publish sends through the process-wide broadcaster. It does nothing while
// none is set.
func Publish(event string, payload any) {
	if r := current.Load(); r != nil {
		r.b.Broadcast(event, payload)
	}
}

// Global forwards to whatever broadcaster is installed with Set.
type Global struct{}

func (Global) Broadcast(event string, payload any) { Publish(event, payload) }
