// Package harness runs the boot-time self test of the associative memory and entities.
package harness

import (
	"errors"
	"fmt"

	"github.com/hyperjump/holokernel/internal/diag"
	"github.com/hyperjump/holokernel/internal/entity"
	"github.com/hyperjump/holokernel/internal/memory"
	"github.com/hyperjump/holokernel/internal/signature"
	"github.com/hyperjump/holokernel/internal/vector"
)

// Literal inputs exercised by the self test.
const (
	GreetingInput  = "Hello Holographic World"
	GreetingOutput = "Response from holographic space"

	// FixtureKey and FixtureValue form the canonical round-trip case.
	FixtureKey   = "TEST_PATTERN"
	FixtureValue = "EXPECTED_RESULT"
)

// SampleTask is the compute task dispatched by the self test.
var SampleTask = entity.Task{
	Target:  entity.Compute,
	ID:      1,
	Payload: [4]uint32{0x12345678, 0xABCDEF00, 0x11111111, 0x22222222},
	Valid:   true,
}

// Deps are the collaborators the self test runs against. Store must be initialized and
// Registry populated, otherwise the affected steps fail.
type Deps struct {
	Store    *memory.Store
	Registry *entity.Registry
	Sink     diag.Sink
}

// Step is the outcome of one self-test step.
type Step struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Report collects every step. Passed is true only if all steps passed.
type Report struct {
	Steps  []Step `json:"steps"`
	Passed bool   `json:"passed"`
}

// Failed returns the steps that did not pass.
func (r *Report) Failed() []Step {
	var out []Step
	for _, s := range r.Steps {
		if !s.OK {
			out = append(out, s)
		}
	}
	return out
}

// Err returns nil if the report passed, else an error naming the first failed step.
func (r *Report) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("self test step %q failed: %s", failed[0].Name, failed[0].Detail)
}

// ErrFailed is wrapped by RunIsolated when the scratch run does not pass.
var ErrFailed = errors.New("self test failed")

type runner struct {
	deps   Deps
	report Report
}

func (r *runner) printf(format string, args ...any) {
	r.deps.Sink.Print(fmt.Sprintf(format, args...))
}

func (r *runner) record(name string, ok bool, detail string) bool {
	r.report.Steps = append(r.report.Steps, Step{Name: name, OK: ok, Detail: detail})
	return ok
}

// Run executes the self test, printing its transcript to d.Sink. The stored pairs
// remain in d.Store afterwards.
func Run(d Deps) Report {
	if d.Sink == nil {
		d.Sink = diag.Discard
	}
	r := &runner{deps: d}
	r.printf("\n[TEST] Running Holographic Memory Tests...\n")

	input := vector.EncodeString(GreetingInput)
	r.printf("[TEST] Created input vector with hash: %s\n", input.Signature)
	r.record("create input vector", input.Valid && input.Signature == signature.SumString(GreetingInput), input.Signature.String())

	output := vector.EncodeString(GreetingOutput)
	r.record("create output vector", output.Valid, output.Signature.String())

	r.roundTrip("store and retrieve", input, output)
	r.dispatch()

	key := vector.EncodeString(FixtureKey)
	value := vector.EncodeString(FixtureValue)
	r.roundTrip("conformance fixture", key, value)

	r.report.Passed = len(r.report.Failed()) == 0
	if r.report.Passed {
		r.printf("[TEST] All holographic tests completed!\n")
	} else {
		r.printf("[TEST] Holographic tests FAILED (%d of %d steps)\n", len(r.report.Failed()), len(r.report.Steps))
	}
	return r.report
}

func (r *runner) roundTrip(name string, key, value vector.Vector) {
	if r.deps.Store == nil {
		r.record(name, false, "no store")
		return
	}
	if _, err := r.deps.Store.Insert(key, value); err != nil {
		r.printf("[TEST] Failed to store holographic memory pair\n")
		r.record(name, false, err.Error())
		return
	}
	r.printf("[TEST] Stored holographic memory pair\n")

	got, ok := r.deps.Store.Lookup(key.Signature)
	if !ok {
		r.printf("[TEST] Failed to retrieve holographic memory\n")
		r.record(name, false, "not found: "+key.Signature.String())
		return
	}
	r.printf("[TEST] Successfully retrieved vector with hash: %s\n", got.Signature)
	if got.Signature != value.Signature {
		r.record(name, false, fmt.Sprintf("retrieved %s, want %s", got.Signature, value.Signature))
		return
	}
	r.record(name, true, got.Signature.String())
}

func (r *runner) dispatch() {
	const name = "entity task"
	if r.deps.Registry == nil {
		r.record(name, false, "no registry")
		return
	}
	e, ok := r.deps.Registry.Entity(SampleTask.Target)
	if !ok {
		r.record(name, false, "entities not initialized")
		return
	}
	before := e.TasksProcessed()
	r.deps.Registry.ProcessTask(e, SampleTask)
	after := e.TasksProcessed()
	r.record(name, after == before+1, fmt.Sprintf("%s tasks_processed=%d", e.Kind, after))
}

// RunIsolated runs the self test against a fresh store and registry so that live
// state is not disturbed.
func RunIsolated(sink diag.Sink) (Report, error) {
	store := memory.NewStore()
	store.Initialize()
	registry := entity.NewRegistry(sink)
	registry.Initialize()
	report := Run(Deps{Store: store, Registry: registry, Sink: sink})
	if err := report.Err(); err != nil {
		return report, fmt.Errorf("%w: %v", ErrFailed, err)
	}
	return report, nil
}
