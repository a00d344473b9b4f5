package models

import (
	"fmt"

	"github.com/hyperjump/holokernel/internal/entity"
	"github.com/hyperjump/holokernel/internal/harness"
	"github.com/hyperjump/holokernel/internal/memory"
	"github.com/hyperjump/holokernel/internal/platform"
	"github.com/hyperjump/holokernel/internal/signature"
	"github.com/hyperjump/holokernel/internal/vector"
)

// MaxInputBytes bounds the key, value and input fields of API requests.
const MaxInputBytes = 64 * 1024

// AssociateRequest stores value under key.
type AssociateRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Validate rejects empty or oversized fields.
func (r *AssociateRequest) Validate() error {
	if r.Key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if len(r.Key) > MaxInputBytes || len(r.Value) > MaxInputBytes {
		return fmt.Errorf("key and value must be at most %d bytes", MaxInputBytes)
	}
	return nil
}

// AssociateResponse reports where a pair was stored.
type AssociateResponse struct {
	memory.InsertResult
	Overwrote bool `json:"overwrote"`
}

// InputRequest carries a single input for encode and recall.
type InputRequest struct {
	Input      string `json:"input"`
	Components bool   `json:"components,omitempty"`
}

// Validate rejects oversized input. Empty input is allowed; it encodes the offset basis.
func (r *InputRequest) Validate() error {
	if len(r.Input) > MaxInputBytes {
		return fmt.Errorf("input must be at most %d bytes", MaxInputBytes)
	}
	return nil
}

// VectorSummary describes a vector without its full component array unless requested.
type VectorSummary struct {
	Fingerprint signature.Fingerprint `json:"fingerprint"`
	Active      uint16                `json:"active"`
	Density     float64               `json:"density"`
	Valid       bool                  `json:"valid"`
	Norm        float64               `json:"norm"`
	Components  []vector.Component    `json:"components,omitempty"`
}

// Summarize builds a VectorSummary, including components when withComponents is set.
func Summarize(v *vector.Vector, withComponents bool) VectorSummary {
	s := VectorSummary{
		Fingerprint: v.Signature,
		Active:      v.Active,
		Density:     v.Density(),
		Valid:       v.Valid,
		Norm:        vector.L2Norm(v),
	}
	if withComponents {
		s.Components = v.Components()
	}
	return s
}

// Similarity compares two vectors. It is diagnostic only; lookups match on the exact
// fingerprint.
type Similarity struct {
	Cosine       float64 `json:"cosine"`
	InnerProduct float64 `json:"inner_product"`
}

// Compare measures a against b.
func Compare(a, b *vector.Vector) Similarity {
	return Similarity{Cosine: vector.Cosine(a, b), InnerProduct: vector.InnerProduct(a, b)}
}

// RecallResponse is the result of a lookup. Found is false for an absent key.
// Similarity compares the encoded query with the recalled value.
type RecallResponse struct {
	Key        signature.Fingerprint `json:"key_fingerprint"`
	Found      bool                  `json:"found"`
	Value      *VectorSummary        `json:"value,omitempty"`
	Similarity *Similarity           `json:"similarity,omitempty"`
}

// MemoriesResponse lists the live store entries.
type MemoriesResponse struct {
	Entries  []memory.EntryInfo `json:"entries"`
	Len      int                `json:"len"`
	Cap      int                `json:"cap"`
	Sequence uint32             `json:"sequence"`
}

// TaskRequest dispatches a task. Valid defaults to true when omitted.
type TaskRequest struct {
	ID      uint32    `json:"id"`
	Payload [4]uint32 `json:"payload"`
	Valid   *bool     `json:"valid,omitempty"`
}

// Task builds the entity task addressed to target.
func (r *TaskRequest) Task(target entity.Kind) entity.Task {
	valid := true
	if r.Valid != nil {
		valid = *r.Valid
	}
	return entity.Task{Target: target, ID: r.ID, Payload: r.Payload, Valid: valid}
}

// TaskResponse reports whether a task was processed and the entity's counter.
type TaskResponse struct {
	Entity         entity.Kind `json:"entity"`
	Processed      bool        `json:"processed"`
	TasksProcessed uint32      `json:"tasks_processed"`
}

// EntityInfo describes one entity.
type EntityInfo struct {
	Kind           entity.Kind   `json:"kind"`
	Tag            string        `json:"tag"`
	ID             uint32        `json:"id"`
	Identity       VectorSummary `json:"identity"`
	Knowledge      VectorSummary `json:"knowledge"`
	TasksProcessed uint32        `json:"tasks_processed"`
}

// DescribeEntity builds an EntityInfo.
func DescribeEntity(e *entity.Entity) EntityInfo {
	return EntityInfo{
		Kind:           e.Kind,
		Tag:            e.Kind.Tag(),
		ID:             e.ID,
		Identity:       Summarize(&e.Identity, false),
		Knowledge:      Summarize(&e.Knowledge, false),
		TasksProcessed: e.TasksProcessed(),
	}
}

// StatusResponse is the kernel status.
type StatusResponse struct {
	Session          string          `json:"session"`
	Booted           bool            `json:"booted"`
	Hardware         platform.Info   `json:"hardware"`
	MemoryLen        int             `json:"memory_len"`
	MemoryCap        int             `json:"memory_cap"`
	MemorySequence   uint32          `json:"memory_sequence"`
	Dimensions       int             `json:"dimensions"`
	Entities         []EntityInfo    `json:"entities"`
	SelfTest         *harness.Report `json:"self_test,omitempty"`
	JournalPath      string          `json:"journal_path,omitempty"`
	JournalDiskBytes *int64          `json:"journal_disk_bytes,omitempty"`
}

// CursorPosition is a console grid position.
type CursorPosition struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// ConsoleResponse is the current text screen.
type ConsoleResponse struct {
	Lines  []string       `json:"lines"`
	Cursor CursorPosition `json:"cursor"`
}

// SelfTestResponse is the result of an isolated self-test run.
type SelfTestResponse struct {
	Report     harness.Report `json:"report"`
	Transcript []string       `json:"transcript"`
}
