package engine

import "time"

// EventKind labels an operation lifecycle event.
type EventKind string

const (
	EventOperationStarted   EventKind = "operation_started"
	EventOperationFinished  EventKind = "operation_finished"
	EventOperationCancelled EventKind = "operation_cancelled"
	EventOperationError     EventKind = "operation_error"
	EventAgentDead          EventKind = "agent_dead"
)

// Event is a lifecycle notification emitted by the engine for external
// consumers (event stream, chat notifier). Emission is fire-and-forget; a
// slow or failing notifier never blocks engine state transitions.
type Event struct {
	Kind        EventKind
	OperationID string
	Operation   string
	Detail      string
	At          time.Time
}

// Notifier receives engine events. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(ev Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}

// MultiNotifier fans one event out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ev Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ev)
		}
	}
}
