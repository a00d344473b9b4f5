package entity

import (
	"go.uber.org/zap"

	"github.com/hyperjump/holokernel/internal/diag"
	"github.com/hyperjump/holokernel/internal/vector"
)

// TaskObserver is told about every task that was processed.
type TaskObserver interface {
	OnTask(e *Entity, t Task)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets a logger for debug output on dispatch.
func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithTaskObserver adds an observer called after each processed task.
func WithTaskObserver(o TaskObserver) RegistryOption {
	return func(r *Registry) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// Registry holds the four entities. It is empty until Initialize runs.
type Registry struct {
	sink      diag.Sink
	logger    *zap.Logger
	observers []TaskObserver
	entities  []*Entity
}

// NewRegistry returns a registry printing dispatch lines to sink.
func NewRegistry(sink diag.Sink, opts ...RegistryOption) *Registry {
	if sink == nil {
		sink = diag.Discard
	}
	r := &Registry{sink: sink, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize creates the four entities in kind order with zeroed task counters.
// Calling it again replaces them.
func (r *Registry) Initialize() {
	entities := make([]*Entity, Count)
	for i := range entities {
		k := Kind(i)
		entities[i] = &Entity{
			Kind:      k,
			ID:        uint32(i),
			Identity:  vector.EncodeString(k.Tag()),
			Knowledge: vector.EncodeString(k.Description()),
		}
	}
	r.entities = entities
}

// Entities returns the entities in kind order, or nil before Initialize.
func (r *Registry) Entities() []*Entity {
	return r.entities
}

// Entity returns the entity of kind k.
func (r *Registry) Entity(k Kind) (*Entity, bool) {
	if !k.Valid() || int(k) >= len(r.entities) {
		return nil, false
	}
	return r.entities[k], true
}

// ProcessTask handles t on e. Invalid tasks are ignored and false is returned.
// The console line is chosen by t.Target, and e is not checked against it: callers
// must pass the entity the task is addressed to.
func (r *Registry) ProcessTask(e *Entity, t Task) bool {
	if !t.Valid || e == nil {
		return false
	}
	if t.Target.Valid() {
		diag.Println(r.sink, "["+t.Target.Tag()+"] "+kinds[t.Target].message)
	}
	e.mu.Lock()
	e.processed++
	n := e.processed
	e.mu.Unlock()

	r.logger.Debug("task processed",
		zap.Stringer("entity", e.Kind),
		zap.Stringer("target", t.Target),
		zap.Uint32("task_id", t.ID),
		zap.Uint32("tasks_processed", n),
	)
	for _, o := range r.observers {
		o.OnTask(e, t)
	}
	return true
}

// Dispatch routes t to the entity named by t.Target.
func (r *Registry) Dispatch(t Task) bool {
	e, ok := r.Entity(t.Target)
	if !ok {
		return false
	}
	return r.ProcessTask(e, t)
}
