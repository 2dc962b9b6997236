// Package bus provides event distribution for workflow runs. Components
// publish and subscribe to run events, decoupling the execution engine from
// observers such as the SSE handler, the event store, and loggers.
package bus

import scribeflow "github.com/scribeflow/scribeflow"

// EventBus distributes events to subscribers.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(event scribeflow.Event)

	// Subscribe registers a subscriber for a specific run.
	// Returns a Subscription that must be closed when done.
	Subscribe(runID string) Subscription

	// SubscribeAll registers a subscriber that receives events from all
	// runs. Returns a Subscription that must be closed when done.
	SubscribeAll() Subscription

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription receives events.
type Subscription interface {
	// Events returns a channel of events for this subscription.
	Events() <-chan scribeflow.Event

	// Close unsubscribes and releases resources.
	Close() error
}
