// listener.go — Event Store listener registry (§4.2 "onEvent / removeEventListener",
// Design Notes §9: "use an interface-typed handle the store can compare by
// identity for removal; never a function-pointer list with structural equality").
package store

import "github.com/devradar/devradar/internal/types"

// EventListener receives every event appended to the store, in registration
// order. A listener that panics or returns an error must never prevent the
// remaining listeners from being invoked, and must never be surfaced to the
// caller of addEvent.
type EventListener interface {
	OnEvent(event types.RuntimeEvent)
}

// EventListenerFunc adapts a plain function to an EventListener.
// RemoveEventListener matches EventListenerFunc values by the function value
// they hold, so two closures created separately are distinct listeners even
// when built from the same code; to remove one, pass back the value that was
// registered.
type EventListenerFunc func(event types.RuntimeEvent)

func (f EventListenerFunc) OnEvent(event types.RuntimeEvent) { f(event) }
