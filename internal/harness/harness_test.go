package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/holokernel/internal/diag"
	"github.com/hyperjump/holokernel/internal/entity"
	"github.com/hyperjump/holokernel/internal/memory"
	"github.com/hyperjump/holokernel/internal/signature"
)

func TestRun_passes(t *testing.T) {
	screen := diag.NewScreen()
	store := memory.NewStore()
	store.Initialize()
	registry := entity.NewRegistry(screen)
	registry.Initialize()

	report := Run(Deps{Store: store, Registry: registry, Sink: screen})
	require.True(t, report.Passed, "failed steps: %+v", report.Failed())
	require.NoError(t, report.Err())
	assert.Len(t, report.Steps, 5)

	assert.Equal(t, 2, store.Len())
	got, ok := store.Lookup(signature.SumString(FixtureKey))
	require.True(t, ok)
	assert.Equal(t, signature.SumString(FixtureValue), got.Signature)

	cpu, _ := registry.Entity(entity.Compute)
	assert.Equal(t, uint32(1), cpu.TasksProcessed())

	lines := strings.Join(screen.Lines(), "\n")
	assert.Contains(t, lines, "[TEST] Running Holographic Memory Tests...")
	assert.Contains(t, lines, "[TEST] Created input vector with hash: 0x1FFABDBF")
	assert.Contains(t, lines, "[TEST] Successfully retrieved vector with hash: 0xFE8FB848")
	assert.Contains(t, lines, "[TEST] Successfully retrieved vector with hash: 0x1A9C0FAB")
	assert.Contains(t, lines, "[CPU] Processing computational task")
	assert.Contains(t, lines, "[TEST] All holographic tests completed!")
}

func TestRun_uninitializedStoreFails(t *testing.T) {
	registry := entity.NewRegistry(nil)
	registry.Initialize()
	report := Run(Deps{Store: memory.NewStore(), Registry: registry})
	assert.False(t, report.Passed)
	require.Error(t, report.Err())

	names := map[string]bool{}
	for _, s := range report.Failed() {
		names[s.Name] = true
	}
	assert.True(t, names["store and retrieve"])
	assert.True(t, names["conformance fixture"])
	assert.False(t, names["entity task"])
}

func TestRun_missingDeps(t *testing.T) {
	report := Run(Deps{})
	assert.False(t, report.Passed)
	assert.Len(t, report.Failed(), 3)
}

func TestRunIsolated(t *testing.T) {
	var buf strings.Builder
	report, err := RunIsolated(diag.NewWriterSink(&buf))
	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.True(t, strings.HasSuffix(buf.String(), "[TEST] All holographic tests completed!\n"))
}
