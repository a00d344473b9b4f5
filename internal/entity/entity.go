// Package entity provides the four fixed agents of the kernel and task dispatch to them.
package entity

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hyperjump/holokernel/internal/vector"
)

// Kind identifies one of the fixed entities.
type Kind uint8

// Entity kinds in registry order.
const (
	Compute Kind = iota
	Memory
	Device
	Filesystem
)

// Count is the number of entities in a registry.
const Count = 4

// ErrUnknownKind is returned when parsing a name that is not an entity kind.
var ErrUnknownKind = errors.New("unknown entity kind")

type kindInfo struct {
	name        string
	tag         string
	description string
	message     string
}

var kinds = [Count]kindInfo{
	Compute: {
		name:        "compute",
		tag:         "CPU",
		description: "computational tasks: arithmetic, encoding and pattern synthesis",
		message:     "Processing computational task",
	},
	Memory: {
		name:        "memory",
		tag:         "MEM",
		description: "memory operations: associative storage and recall of patterns",
		message:     "Processing memory operation",
	},
	Device: {
		name:        "device",
		tag:         "DEV",
		description: "device operations: console output and platform feature probing",
		message:     "Processing device operation",
	},
	Filesystem: {
		name:        "filesystem",
		tag:         "FS",
		description: "filesystem operations: naming, lookup and organisation of stored data",
		message:     "Processing filesystem operation",
	},
}

// Valid reports whether k is one of the four kinds.
func (k Kind) Valid() bool { return k < Count }

// String returns the lower-case kind name.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kinds[k].name
}

// Tag returns the short console tag, e.g. "CPU".
func (k Kind) Tag() string {
	if !k.Valid() {
		return "???"
	}
	return kinds[k].tag
}

// Description is the literal capability text the knowledge vector is encoded from.
func (k Kind) Description() string {
	if !k.Valid() {
		return ""
	}
	return kinds[k].description
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	v, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseKind accepts a kind name ("compute") or tag ("CPU"), case-insensitively.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	for i, info := range kinds {
		if strings.EqualFold(s, info.name) || strings.EqualFold(s, info.tag) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Task is a transient instruction for an entity.
type Task struct {
	Target  Kind      `json:"target"`
	ID      uint32    `json:"id"`
	Payload [4]uint32 `json:"payload"`
	Valid   bool      `json:"valid"`
}

// Entity is one of the fixed agents. Its vectors are owned by the entity and never shared.
type Entity struct {
	Kind      Kind
	ID        uint32
	Identity  vector.Vector
	Knowledge vector.Vector

	mu        sync.Mutex
	processed uint32
}

// TasksProcessed returns the number of valid tasks handled.
func (e *Entity) TasksProcessed() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.processed
}
