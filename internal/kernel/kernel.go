// Package kernel owns the associative store, the entity registry and the diagnostic
// console for one boot, and exposes the operations the server and CLI call.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/holokernel/internal/diag"
	"github.com/hyperjump/holokernel/internal/entity"
	"github.com/hyperjump/holokernel/internal/harness"
	"github.com/hyperjump/holokernel/internal/memory"
	"github.com/hyperjump/holokernel/internal/models"
	"github.com/hyperjump/holokernel/internal/platform"
	"github.com/hyperjump/holokernel/internal/signature"
	"github.com/hyperjump/holokernel/internal/storage"
	"github.com/hyperjump/holokernel/internal/vector"
)

// Banner is the first console line of every boot.
const Banner = "Holographic Entity OS - hosted mode"

// HeartbeatInterval is the default blink period of the activity marker.
const HeartbeatInterval = 500 * time.Millisecond

// heartbeatMark is the activity marker in the bottom right screen corner.
const heartbeatMark = '_'

var (
	// ErrNotBooted is returned by operations called before Boot or after Shutdown.
	ErrNotBooted = errors.New("kernel not booted")
	// ErrAlreadyBooted is returned by a second Boot.
	ErrAlreadyBooted = errors.New("kernel already booted")
)

// Option configures a Kernel.
type Option func(*Kernel)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(k *Kernel) {
		if l != nil {
			k.logger = l
		}
	}
}

// WithProbe sets the platform probe. The default reads the host CPU.
func WithProbe(p platform.Probe) Option {
	return func(k *Kernel) { k.probe = p }
}

// WithSink mirrors console output to s in addition to the in-memory screen.
func WithSink(s diag.Sink) Option {
	return func(k *Kernel) {
		if s != nil {
			k.extraSinks = append(k.extraSinks, s)
		}
	}
}

// WithJournal records the session, console lines and store and task events to j.
func WithJournal(j storage.Journal, path string) Option {
	return func(k *Kernel) {
		k.journal = j
		k.journalPath = path
	}
}

// WithSelfTest enables or disables the boot-time self test (enabled by default).
func WithSelfTest(enabled bool) Option {
	return func(k *Kernel) { k.selfTest = enabled }
}

// WithStoreObserver adds an observer to the associative store.
func WithStoreObserver(o memory.Observer) Option {
	return func(k *Kernel) { k.storeObservers = append(k.storeObservers, o) }
}

// WithTaskObserver adds an observer to entity dispatch.
func WithTaskObserver(o entity.TaskObserver) Option {
	return func(k *Kernel) { k.taskObservers = append(k.taskObservers, o) }
}

// Kernel is the explicit context replacing process-wide kernel state. Create it with
// New, then Boot; Shutdown tears it down.
type Kernel struct {
	logger         *zap.Logger
	probe          platform.Probe
	screen         *diag.Screen
	sink           diag.Sink
	extraSinks     []diag.Sink
	journal        storage.Journal
	journalPath    string
	recorder       *journalRecorder
	selfTest       bool
	storeObservers []memory.Observer
	taskObservers  []entity.TaskObserver

	store    *memory.Store
	registry *entity.Registry

	mu      sync.RWMutex
	booted  bool
	session string
	info    platform.Info
	report  *harness.Report
}

// New builds an unbooted kernel.
func New(opts ...Option) *Kernel {
	k := &Kernel{
		logger:   zap.NewNop(),
		screen:   diag.NewScreen(),
		selfTest: true,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.probe == nil {
		k.probe = platform.NewHostProbe(0)
	}

	sinks := append([]diag.Sink{k.screen}, k.extraSinks...)
	storeObs := append([]memory.Observer{&capacityWarner{k: k}}, k.storeObservers...)
	taskObs := k.taskObservers
	if k.journal != nil {
		k.recorder = newJournalRecorder(k.journal, k.logger)
		sinks = append(sinks, k.recorder)
		storeObs = append(storeObs, k.recorder)
		taskObs = append(taskObs, k.recorder)
	}
	k.sink = diag.Multi(sinks...)

	storeOpts := make([]memory.StoreOption, 0, len(storeObs))
	for _, o := range storeObs {
		storeOpts = append(storeOpts, memory.WithObserver(o))
	}
	k.store = memory.NewStore(storeOpts...)

	regOpts := []entity.RegistryOption{entity.WithLogger(k.logger)}
	for _, o := range taskObs {
		regOpts = append(regOpts, entity.WithTaskObserver(o))
	}
	k.registry = entity.NewRegistry(k.sink, regOpts...)
	return k
}

// Boot runs the boot sequence: banner, entity and memory initialization, hardware
// detection and, if enabled, the self test. The returned report is nil when the self
// test is disabled. A failing self test is reported, not returned as an error.
func (k *Kernel) Boot(ctx context.Context) (*harness.Report, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.booted {
		return nil, ErrAlreadyBooted
	}

	k.session = uuid.NewString()
	k.info = k.probe.Detect()
	if k.recorder != nil {
		k.recorder.setSession(k.session)
		if err := k.journal.StartSession(ctx, &models.Session{
			ID:          k.session,
			CPUVendor:   k.info.Vendor,
			CPUFeatures: k.info.Features,
			MemoryKB:    k.info.MemoryKB,
		}); err != nil {
			return nil, fmt.Errorf("failed to start journal session: %w", err)
		}
	}

	k.screen.Clear()
	k.screen.Home()
	diag.Println(k.sink, Banner)
	diag.Println(k.sink, "Kernel initialized successfully!")
	diag.Println(k.sink, "")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k.registry.Initialize()
	k.store.Initialize()

	diag.Println(k.sink, "CPU Vendor: "+k.info.Vendor)
	diag.Println(k.sink, "CPU Features: "+diag.Hex(k.info.Features))
	diag.Println(k.sink, "Memory: "+diag.Hex(k.info.MemoryKB)+" KB")
	diag.Println(k.sink, "")

	k.logger.Info("kernel booting",
		zap.String("session", k.session),
		zap.String("cpu_vendor", k.info.Vendor),
		zap.String("cpu_features", diag.Hex(k.info.Features)),
		zap.Uint32("memory_kb", k.info.MemoryKB),
	)

	if k.selfTest {
		if err := ctx.Err(); err != nil {
			k.store.Reset()
			return nil, err
		}
		report := harness.Run(harness.Deps{Store: k.store, Registry: k.registry, Sink: k.sink})
		k.report = &report
		if !report.Passed {
			k.logger.Warn("self test failed", zap.Error(report.Err()))
		}
	}

	diag.Println(k.sink, "")
	diag.Println(k.sink, "System ready.")
	k.booted = true
	return k.report, nil
}

// Shutdown abandons all stored memories and marks the kernel down.
func (k *Kernel) Shutdown() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.booted {
		return
	}
	diag.Println(k.sink, "System halted.")
	k.store.Reset()
	k.booted = false
	k.logger.Info("kernel shut down", zap.String("session", k.session))
}

func (k *Kernel) checkBooted() error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if !k.booted {
		return ErrNotBooted
	}
	return nil
}

// Session returns the boot session ID, empty before the first Boot.
func (k *Kernel) Session() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.session
}

// Booted reports whether the kernel is up.
func (k *Kernel) Booted() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.booted
}

// Journal returns the diagnostic journal, or nil when journaling is disabled.
func (k *Kernel) Journal() storage.Journal {
	return k.journal
}

// Encode encodes input. It needs no booted kernel.
func (k *Kernel) Encode(input []byte) vector.Vector {
	return vector.Encode(input)
}

// Associate stores Encode(value) under Encode(key).
func (k *Kernel) Associate(key, value []byte) (memory.InsertResult, error) {
	if err := k.checkBooted(); err != nil {
		return memory.InsertResult{}, err
	}
	return k.store.Insert(vector.Encode(key), vector.Encode(value))
}

// Recall looks up the value associated with input.
func (k *Kernel) Recall(input []byte) (signature.Fingerprint, vector.Vector, bool, error) {
	fp := signature.Sum(input)
	v, ok, err := k.RecallFingerprint(fp)
	return fp, v, ok, err
}

// RecallFingerprint looks up the value stored under fp.
func (k *Kernel) RecallFingerprint(fp signature.Fingerprint) (vector.Vector, bool, error) {
	if err := k.checkBooted(); err != nil {
		return vector.Vector{}, false, err
	}
	v, ok := k.store.Lookup(fp)
	return v, ok, nil
}

// Dispatch routes t to the entity it targets. It reports whether the task was processed
// and that entity's counter afterwards.
func (k *Kernel) Dispatch(t entity.Task) (bool, uint32, error) {
	if err := k.checkBooted(); err != nil {
		return false, 0, err
	}
	e, ok := k.registry.Entity(t.Target)
	if !ok {
		return false, 0, fmt.Errorf("%w: %d", entity.ErrUnknownKind, uint8(t.Target))
	}
	processed := k.registry.ProcessTask(e, t)
	return processed, e.TasksProcessed(), nil
}

// Entities returns the registry's entities, or nil before Boot.
func (k *Kernel) Entities() []*entity.Entity {
	return k.registry.Entities()
}

// Memories lists the live store entries.
func (k *Kernel) Memories() models.MemoriesResponse {
	return models.MemoriesResponse{
		Entries:  k.store.Snapshot(),
		Len:      k.store.Len(),
		Cap:      k.store.Cap(),
		Sequence: k.store.Sequence(),
	}
}

// Console returns the screen rows.
func (k *Kernel) Console() []string {
	return k.screen.Lines()
}

// Cursor returns the console cursor position.
func (k *Kernel) Cursor() models.CursorPosition {
	row, col := k.screen.Cursor()
	return models.CursorPosition{Row: row, Col: col}
}

// Heartbeat blinks the activity marker in the bottom right corner of the console every
// interval while the kernel is booted, until ctx is done.
func (k *Kernel) Heartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if k.Booted() {
				k.blink()
			}
		}
	}
}

func (k *Kernel) blink() {
	row, col := diag.Rows-1, diag.Columns-1
	next := byte(heartbeatMark)
	if c, _ := k.screen.Cell(row, col); c.Char == heartbeatMark {
		next = ' '
	}
	k.screen.SetCell(row, col, diag.Cell{Char: next, Attr: diag.DefaultAttr})
}

// Status summarizes the kernel.
func (k *Kernel) Status() models.StatusResponse {
	k.mu.RLock()
	resp := models.StatusResponse{
		Session:     k.session,
		Booted:      k.booted,
		Hardware:    k.info,
		SelfTest:    k.report,
		Dimensions:  vector.Dimensions,
		JournalPath: k.journalPath,
	}
	k.mu.RUnlock()

	resp.MemoryLen = k.store.Len()
	resp.MemoryCap = k.store.Cap()
	resp.MemorySequence = k.store.Sequence()
	for _, e := range k.registry.Entities() {
		resp.Entities = append(resp.Entities, models.DescribeEntity(e))
	}
	if k.journalPath != "" {
		if n, err := storage.JournalDiskUsage(k.journalPath); err == nil {
			resp.JournalDiskBytes = &n
		}
	}
	return resp
}

// SelfTest runs the harness against scratch state and returns its transcript.
func (k *Kernel) SelfTest() models.SelfTestResponse {
	screen := diag.NewScreen()
	report, err := harness.RunIsolated(screen)
	if err != nil {
		k.logger.Warn("isolated self test failed", zap.Error(err))
	}
	return models.SelfTestResponse{Report: report, Transcript: screen.Lines()}
}

// capacityWarner prints a console warning when a full store drops its history.
type capacityWarner struct{ k *Kernel }

func (w *capacityWarner) OnInsert(memory.EntryInfo) {}

func (w *capacityWarner) OnOverwrite(abandoned int) {
	diag.Println(w.k.sink, fmt.Sprintf("[WARN] Holographic memory full: %d entries abandoned, overwriting from slot 0", abandoned))
	w.k.logger.Warn("holographic memory full, history abandoned",
		zap.Int("abandoned", abandoned),
		zap.Int("capacity", memory.Capacity),
	)
}

func (w *capacityWarner) OnLookup(signature.Fingerprint, bool) {}
