package eventing

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// Registry maps envelope type names back to concrete bill event
// structs. Outbox rows store payloads as JSON; without a registered
// sample the dispatcher cannot rebuild the event and dead-letters it.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]func() any
}

// NewRegistry constructs an empty registry. Wiring registers every
// bill lifecycle event at startup.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]func() any)}
}

// Register adds an event type by sample value or pointer.
func (r *Registry) Register(sample any) {
	if r == nil || sample == nil {
		return
	}
	t := reflect.TypeOf(sample)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r.mu.Lock()
	r.decoders[t.String()] = func() any {
		return reflect.New(t).Interface()
	}
	r.mu.Unlock()
}

// DecodePayload rebuilds the concrete event from an envelope.
func (r *Registry) DecodePayload(env Envelope) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("eventing: nil registry")
	}
	r.mu.RLock()
	decode := r.decoders[env.EventType]
	r.mu.RUnlock()
	if decode == nil {
		return nil, fmt.Errorf("eventing: unregistered event type %q", env.EventType)
	}
	target := decode()
	if err := json.Unmarshal(env.Payload, target); err != nil {
		return nil, err
	}
	value := reflect.ValueOf(target)
	if value.Kind() == reflect.Ptr && !value.IsNil() {
		return value.Elem().Interface(), nil
	}
	return target, nil
}
