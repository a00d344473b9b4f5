package watcher

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/holokernel/internal/memory"
)

// Associator stores one key/value pair.
type Associator interface {
	Associate(key, value []byte) (memory.InsertResult, error)
}

// Ingester associates each file it is handed: Encode(base name) -> Encode(contents).
type Ingester struct {
	assoc    Associator
	maxBytes int64
	logger   *zap.Logger
}

// NewIngester returns an ingester reading at most maxBytes of each file.
func NewIngester(assoc Associator, maxBytes int64, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{assoc: assoc, maxBytes: maxBytes, logger: logger}
}

// Ingest reads path and associates its contents under its base name.
func (g *Ingester) Ingest(path string) (memory.InsertResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return memory.InsertResult{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, g.maxBytes+1))
	if err != nil {
		return memory.InsertResult{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if int64(len(data)) > g.maxBytes {
		return memory.InsertResult{}, fmt.Errorf("%s exceeds %d bytes", path, g.maxBytes)
	}
	res, err := g.assoc.Associate([]byte(filepath.Base(path)), data)
	if err != nil {
		return memory.InsertResult{}, fmt.Errorf("failed to associate %s: %w", path, err)
	}
	return res, nil
}

// Handle is an onFile callback for Watcher. Failures are logged.
func (g *Ingester) Handle(path string) {
	res, err := g.Ingest(path)
	if err != nil {
		g.logger.Warn("ingest failed", zap.String("path", path), zap.Error(err))
		return
	}
	g.logger.Info("ingested file",
		zap.String("path", path),
		zap.Stringer("key", res.KeySignature),
		zap.Stringer("value", res.ValueSignature),
		zap.Int("slot", res.Slot),
	)
}
