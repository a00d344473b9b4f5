// Package models defines the journal records and API payloads shared by the server,
// the CLI and storage.
package models

import (
	"fmt"
	"time"

	"github.com/hyperjump/holokernel/internal/signature"
)

// EventKind classifies a journal event.
type EventKind string

const (
	EventConsole   EventKind = "console"
	EventInsert    EventKind = "insert"
	EventOverwrite EventKind = "overwrite"
	EventTask      EventKind = "task"
)

// ParseEventKind validates a kind filter. The empty string matches every kind.
func ParseEventKind(s string) (EventKind, error) {
	switch k := EventKind(s); k {
	case "", EventConsole, EventInsert, EventOverwrite, EventTask:
		return k, nil
	}
	return "", fmt.Errorf("unknown event kind %q", s)
}

// Session is one boot of the kernel.
type Session struct {
	ID          string    `json:"id" db:"id"`
	CPUVendor   string    `json:"cpu_vendor" db:"cpu_vendor"`
	CPUFeatures uint32    `json:"cpu_features" db:"cpu_features"`
	MemoryKB    uint32    `json:"memory_kb" db:"memory_kb"`
	StartedAt   time.Time `json:"started_at" db:"started_at"`
}

// JournalEvent is one row of the diagnostic journal. Fields irrelevant to Kind are zero.
type JournalEvent struct {
	ID        int64                 `json:"id" db:"id"`
	SessionID string                `json:"session_id" db:"session_id"`
	Kind      EventKind             `json:"kind" db:"kind"`
	Text      string                `json:"text,omitempty" db:"text"`
	Slot      int                   `json:"slot,omitempty" db:"slot"`
	Sequence  uint32                `json:"sequence,omitempty" db:"sequence"`
	KeyFP     signature.Fingerprint `json:"key_fingerprint,omitempty" db:"key_fp"`
	ValueFP   signature.Fingerprint `json:"value_fingerprint,omitempty" db:"value_fp"`
	Abandoned int                   `json:"abandoned,omitempty" db:"abandoned"`
	Entity    string                `json:"entity,omitempty" db:"entity"`
	Target    string                `json:"target,omitempty" db:"target"`
	TaskID    uint32                `json:"task_id,omitempty" db:"task_id"`
	CreatedAt time.Time             `json:"created_at" db:"created_at"`
}

// SessionsResponse is one page of boot sessions, newest first.
type SessionsResponse struct {
	Sessions []*Session `json:"sessions"`
	Offset   int        `json:"offset"`
	Limit    int        `json:"limit"`
}

// EventsResponse is one page of a session's events in append order. Total counts every
// event matching Kind, not just this page.
type EventsResponse struct {
	Session *Session        `json:"session"`
	Kind    EventKind       `json:"kind,omitempty"`
	Events  []*JournalEvent `json:"events"`
	Total   int64           `json:"total"`
	Offset  int             `json:"offset"`
	Limit   int             `json:"limit"`
}
