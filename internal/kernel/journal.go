package kernel

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/holokernel/internal/entity"
	"github.com/hyperjump/holokernel/internal/memory"
	"github.com/hyperjump/holokernel/internal/models"
	"github.com/hyperjump/holokernel/internal/signature"
	"github.com/hyperjump/holokernel/internal/storage"
)

const journalWriteTimeout = 2 * time.Second

// journalRecorder appends console lines and store and task events to the journal.
// Write failures are logged and otherwise ignored so the core never blocks on storage.
type journalRecorder struct {
	journal storage.Journal
	logger  *zap.Logger

	mu      sync.Mutex
	session string
	pending strings.Builder
}

func newJournalRecorder(j storage.Journal, logger *zap.Logger) *journalRecorder {
	return &journalRecorder{journal: j, logger: logger}
}

func (r *journalRecorder) setSession(id string) {
	r.mu.Lock()
	r.session = id
	r.pending.Reset()
	r.mu.Unlock()
}

func (r *journalRecorder) append(e *models.JournalEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()
	if err := r.journal.AppendEvent(ctx, e); err != nil {
		r.logger.Warn("journal append failed", zap.String("kind", string(e.Kind)), zap.Error(err))
	}
}

// Print implements diag.Sink. Each completed non-empty line becomes one console event.
func (r *journalRecorder) Print(text string) {
	r.mu.Lock()
	session := r.session
	var lines []string
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			r.pending.WriteString(text)
			break
		}
		r.pending.WriteString(text[:i])
		if line := r.pending.String(); line != "" {
			lines = append(lines, line)
		}
		r.pending.Reset()
		text = text[i+1:]
	}
	r.mu.Unlock()

	if len(lines) == 0 {
		return
	}
	events := make([]*models.JournalEvent, len(lines))
	for i, line := range lines {
		events[i] = &models.JournalEvent{SessionID: session, Kind: models.EventConsole, Text: line}
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()
	if err := r.journal.BatchAppendEvents(ctx, events); err != nil {
		r.logger.Warn("journal console append failed", zap.Error(err))
	}
}

func (r *journalRecorder) currentSession() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// OnInsert implements memory.Observer.
func (r *journalRecorder) OnInsert(info memory.EntryInfo) {
	r.append(&models.JournalEvent{
		SessionID: r.currentSession(),
		Kind:      models.EventInsert,
		Slot:      info.Slot,
		Sequence:  info.Sequence,
		KeyFP:     info.KeySignature,
		ValueFP:   info.ValueSignature,
	})
}

// OnOverwrite implements memory.Observer.
func (r *journalRecorder) OnOverwrite(abandoned int) {
	r.append(&models.JournalEvent{
		SessionID: r.currentSession(),
		Kind:      models.EventOverwrite,
		Abandoned: abandoned,
	})
}

// OnLookup implements memory.Observer. Lookups are not journaled.
func (r *journalRecorder) OnLookup(signature.Fingerprint, bool) {}

// OnTask implements entity.TaskObserver.
func (r *journalRecorder) OnTask(e *entity.Entity, t entity.Task) {
	r.append(&models.JournalEvent{
		SessionID: r.currentSession(),
		Kind:      models.EventTask,
		Entity:    e.Kind.String(),
		Target:    t.Target.String(),
		TaskID:    t.ID,
	})
}
