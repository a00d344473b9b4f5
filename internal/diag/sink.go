// Package diag provides the diagnostic text sinks the kernel prints through: an
// in-memory text-mode screen, plain writers, and a zap-backed log sink.
package diag

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Sink accepts diagnostic text. Implementations must not block indefinitely.
type Sink interface {
	Print(s string)
}

// Hex renders v the way the kernel console prints numbers.
func Hex(v uint32) string {
	return fmt.Sprintf("0x%08X", v)
}

// Println prints s followed by a newline.
func Println(s Sink, text string) {
	s.Print(text + "\n")
}

// Discard drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Print(string) {}

// WriterSink writes diagnostic text to an io.Writer. Write errors are dropped.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink wraps w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Print writes s.
func (s *WriterSink) Print(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.w, text)
}

// LogSink buffers text until a newline and emits each completed line as one log record.
type LogSink struct {
	mu      sync.Mutex
	logger  *zap.Logger
	pending strings.Builder
}

// NewLogSink returns a sink logging at info level to logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Print appends text and flushes every completed line.
func (s *LogSink) Print(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			s.pending.WriteString(text)
			return
		}
		s.pending.WriteString(text[:i])
		line := s.pending.String()
		s.pending.Reset()
		if line != "" {
			s.logger.Info("console", zap.String("line", line))
		}
		text = text[i+1:]
	}
}

// Multi fans text out to every sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) Print(text string) {
	for _, s := range m {
		s.Print(text)
	}
}
