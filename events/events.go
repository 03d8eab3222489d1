package events

import (
	"reflect"
	"sync"
)

// EventHandler defines a callback invoked with published event data. A non-nil error stops delivery and is returned
// to the publisher.
type EventHandler[T any] func(T) error

// globalEventHandlers maps an event type name to the handlers subscribed for every emitter of that type.
var globalEventHandlers = make(map[string][]any)

// globalEventHandlersLock guards globalEventHandlers.
var globalEventHandlersLock sync.RWMutex

// eventTypeName returns the key used to look up global handlers for events of type T.
func eventTypeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

// SubscribeAny adds an EventHandler invoked whenever any EventEmitter publishes an event of type T. Handlers
// subscribed here live for the rest of the program, so short-lived objects should use EventEmitter.Subscribe.
func SubscribeAny[T any](callback EventHandler[T]) {
	key := eventTypeName[T]()
	globalEventHandlersLock.Lock()
	defer globalEventHandlersLock.Unlock()
	globalEventHandlers[key] = append(globalEventHandlers[key], callback)
}

// EventEmitter describes a provider which can subscribe EventHandler methods for callback when the event type
// (generic) is published. It additionally provides methods for publishing events.
type EventEmitter[T any] struct {
	// subscriptions defines the EventHandler methods which should be invoked when a new event is published to this
	// emitter.
	subscriptions []EventHandler[T]

	// lock guards subscriptions
	lock sync.RWMutex
}

// Publish emits the provided event by calling every EventHandler subscribed to this emitter, followed by every
// handler subscribed through SubscribeAny. Returns the first error a handler returns.
func (e *EventEmitter[T]) Publish(event T) error {
	e.lock.RLock()
	subscriptions := e.subscriptions
	e.lock.RUnlock()
	for _, subscription := range subscriptions {
		if err := subscription(event); err != nil {
			return err
		}
	}

	globalEventHandlersLock.RLock()
	callbacks := globalEventHandlers[eventTypeName[T]()]
	globalEventHandlersLock.RUnlock()
	for _, callback := range callbacks {
		if err := callback.(EventHandler[T])(event); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe adds an EventHandler to the list of subscribed EventHandler objects for this emitter. When an event is
// published, the callback will be triggered with the event data.
func (e *EventEmitter[T]) Subscribe(callback EventHandler[T]) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.subscriptions = append(e.subscriptions, callback)
}
