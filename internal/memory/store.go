// Package memory provides the fixed-capacity associative store that maps a key
// fingerprint to a previously associated value vector.
package memory

import (
	"errors"
	"sync"

	"github.com/hyperjump/holokernel/internal/signature"
	"github.com/hyperjump/holokernel/internal/vector"
)

// Capacity is the number of entry slots in a store.
const Capacity = 64

// ErrNotInitialized is returned by Insert before Initialize has run.
var ErrNotInitialized = errors.New("memory store not initialized")

type entry struct {
	key      vector.Vector
	value    vector.Vector
	sequence uint32
	valid    bool
}

// EntryInfo is a read-only summary of a stored entry.
type EntryInfo struct {
	Slot           int                   `json:"slot"`
	Sequence       uint32                `json:"sequence"`
	KeySignature   signature.Fingerprint `json:"key_fingerprint"`
	ValueSignature signature.Fingerprint `json:"value_fingerprint"`
	KeyActive      uint16                `json:"key_active"`
	ValueActive    uint16                `json:"value_active"`
}

// InsertResult describes where an Insert landed.
type InsertResult struct {
	EntryInfo
	// Abandoned is the number of entries discarded because the store was full
	// before this insert. Zero when no reset happened.
	Abandoned int `json:"abandoned"`
}

// Observer receives store events. Callbacks run after the store lock is released.
type Observer interface {
	OnInsert(info EntryInfo)
	// OnOverwrite reports that a full store dropped its whole history.
	OnOverwrite(abandoned int)
	OnLookup(fp signature.Fingerprint, hit bool)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithObserver adds an observer. Observers are called in the order they were added.
func WithObserver(o Observer) StoreOption {
	return func(s *Store) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// Store is a fixed arena of Capacity entries with an append cursor. When the arena is
// full the next Insert resets the cursor to zero and discards every entry; there is
// no per-entry eviction.
type Store struct {
	mu          sync.RWMutex
	entries     [Capacity]entry
	count       int
	sequence    uint32
	initialized bool
	observers   []Observer
}

// NewStore returns an uninitialized store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize invalidates every slot and resets the count and sequence counter.
func (s *Store) Initialize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	s.initialized = true
}

// Reset returns the store to its uninitialized state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	s.initialized = false
}

func (s *Store) clear() {
	for i := range s.entries {
		s.entries[i] = entry{}
	}
	s.count = 0
	s.sequence = 0
}

// Insert copies key and value into the next slot and stamps it with the next
// sequence number.
func (s *Store) Insert(key, value vector.Vector) (InsertResult, error) {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return InsertResult{}, ErrNotInitialized
	}
	var res InsertResult
	if s.count >= Capacity {
		res.Abandoned = s.count
		for i := range s.entries {
			s.entries[i].valid = false
		}
		s.count = 0
	}
	slot := s.count
	e := &s.entries[slot]
	e.key = key
	e.value = value
	e.sequence = s.sequence
	e.valid = true
	s.sequence++
	s.count++
	res.EntryInfo = e.info(slot)
	s.mu.Unlock()

	if res.Abandoned > 0 {
		for _, o := range s.observers {
			o.OnOverwrite(res.Abandoned)
		}
	}
	for _, o := range s.observers {
		o.OnInsert(res.EntryInfo)
	}
	return res, nil
}

// Lookup returns a copy of the value of the first entry, in insertion order, whose key
// fingerprint equals fp. Matching is exact; there is no similarity search.
func (s *Store) Lookup(fp signature.Fingerprint) (vector.Vector, bool) {
	s.mu.RLock()
	var (
		out vector.Vector
		hit bool
	)
	for i := 0; i < s.count; i++ {
		e := &s.entries[i]
		if !e.valid {
			continue
		}
		if e.key.Signature == fp {
			out, hit = e.value, true
			break
		}
	}
	s.mu.RUnlock()

	for _, o := range s.observers {
		o.OnLookup(fp, hit)
	}
	return out, hit
}

// Len returns the number of entries written since the last reset.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Cap returns Capacity.
func (s *Store) Cap() int { return Capacity }

// Sequence returns the next sequence number to be assigned.
func (s *Store) Sequence() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sequence
}

// Initialized reports whether Initialize has run since construction or the last Reset.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Snapshot lists the live entries in slot order.
func (s *Store) Snapshot() []EntryInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EntryInfo, 0, s.count)
	for i := 0; i < s.count; i++ {
		if s.entries[i].valid {
			out = append(out, s.entries[i].info(i))
		}
	}
	return out
}

func (e *entry) info(slot int) EntryInfo {
	return EntryInfo{
		Slot:           slot,
		Sequence:       e.sequence,
		KeySignature:   e.key.Signature,
		ValueSignature: e.value.Signature,
		KeyActive:      e.key.Active,
		ValueActive:    e.value.Active,
	}
}
