// Package cli formats command output for the holokernel CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/holokernel/internal/models"
	"github.com/hyperjump/holokernel/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// componentPreview bounds the components printed in text mode.
const componentPreview = 8

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteVector writes an encoded vector summary.
func WriteVector(w io.Writer, input string, v *models.VectorSummary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, v)
	}
	fmt.Fprintf(w, "Input:       %q\n", utils.Truncate(input, 60))
	writeSummaryText(w, v)
	return nil
}

func writeSummaryText(w io.Writer, v *models.VectorSummary) {
	fmt.Fprintf(w, "Fingerprint: %s\n", v.Fingerprint)
	fmt.Fprintf(w, "Active:      %d (%.1f%%), norm %.4f\n", v.Active, v.Density*100, v.Norm)
	if len(v.Components) == 0 {
		return
	}
	parts := make([]string, 0, componentPreview)
	for i, c := range v.Components {
		if i == componentPreview {
			break
		}
		parts = append(parts, fmt.Sprintf("%d:%.3f", c.Index, c.Value))
	}
	more := ""
	if len(v.Components) > componentPreview {
		more = fmt.Sprintf(" ... (+%d)", len(v.Components)-componentPreview)
	}
	fmt.Fprintf(w, "Components:  %s%s\n", strings.Join(parts, " "), more)
}

// WriteAssociate writes the result of storing a pair.
func WriteAssociate(w io.Writer, resp *models.AssociateResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "Stored %s -> %s in slot %d (sequence %d)\n",
		resp.KeySignature, resp.ValueSignature, resp.Slot, resp.Sequence)
	if resp.Overwrote {
		fmt.Fprintf(w, "Memory was full: %d entries abandoned\n", resp.Abandoned)
	}
	return nil
}

// WriteRecall writes a lookup result.
func WriteRecall(w io.Writer, resp *models.RecallResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	if !resp.Found || resp.Value == nil {
		fmt.Fprintf(w, "No memory stored under %s\n", resp.Key)
		return nil
	}
	fmt.Fprintf(w, "Key:         %s\n", resp.Key)
	writeSummaryText(w, resp.Value)
	if resp.Similarity != nil {
		writeSimilarityText(w, resp.Similarity)
	}
	return nil
}

func writeSimilarityText(w io.Writer, s *models.Similarity) {
	fmt.Fprintf(w, "Similarity:  cosine %.4f, inner product %.4f\n", s.Cosine, s.InnerProduct)
}

// Comparison is the result of encoding two inputs side by side.
type Comparison struct {
	Input      string               `json:"input"`
	Other      string               `json:"other"`
	Vector     models.VectorSummary `json:"vector"`
	OtherVec   models.VectorSummary `json:"other_vector"`
	Similarity models.Similarity    `json:"similarity"`
}

// WriteComparison writes two encodings and their similarity.
func WriteComparison(w io.Writer, c *Comparison, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, c)
	}
	fmt.Fprintf(w, "Input:       %q\n", utils.Truncate(c.Input, 60))
	writeSummaryText(w, &c.Vector)
	fmt.Fprintf(w, "Compare:     %q\n", utils.Truncate(c.Other, 60))
	writeSummaryText(w, &c.OtherVec)
	writeSimilarityText(w, &c.Similarity)
	return nil
}

// WriteStatus writes the kernel status.
func WriteStatus(w io.Writer, s *models.StatusResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	state := "halted"
	if s.Booted {
		state = "running"
	}
	fmt.Fprintf(w, "Session:     %s (%s)\n", s.Session, state)
	fmt.Fprintf(w, "CPU Vendor:  %s\n", s.Hardware.Vendor)
	fmt.Fprintf(w, "Features:    0x%08X\n", s.Hardware.Features)
	fmt.Fprintf(w, "Memory:      %d KB\n", s.Hardware.MemoryKB)
	fmt.Fprintf(w, "Store:       %d/%d entries, sequence %d\n", s.MemoryLen, s.MemoryCap, s.MemorySequence)
	fmt.Fprintf(w, "Dimensions:  %d\n", s.Dimensions)
	if s.SelfTest != nil {
		result := "passed"
		if !s.SelfTest.Passed {
			result = "FAILED"
		}
		fmt.Fprintf(w, "Self test:   %s\n", result)
	}
	if s.JournalPath != "" {
		fmt.Fprintf(w, "Journal:     %s", s.JournalPath)
		if s.JournalDiskBytes != nil {
			fmt.Fprintf(w, " (%d bytes)", *s.JournalDiskBytes)
		}
		fmt.Fprintln(w)
	}
	if len(s.Entities) > 0 {
		fmt.Fprintln(w, "Entities:")
		for _, e := range s.Entities {
			fmt.Fprintf(w, "  [%-3s] %-10s id=%d tasks=%d identity=%s\n",
				e.Tag, e.Kind, e.ID, e.TasksProcessed, e.Identity.Fingerprint)
		}
	}
	return nil
}

// WriteSelfTest writes a self-test transcript followed by the step results.
func WriteSelfTest(w io.Writer, resp *models.SelfTestResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	for _, line := range resp.Transcript {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
	for _, step := range resp.Report.Steps {
		mark := "ok  "
		if !step.OK {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "%s %s", mark, step.Name)
		if step.Detail != "" {
			fmt.Fprintf(w, " (%s)", step.Detail)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// WriteSessions writes a page of journal sessions.
func WriteSessions(w io.Writer, resp *models.SessionsResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	if len(resp.Sessions) == 0 {
		fmt.Fprintln(w, "No sessions recorded")
		return nil
	}
	for _, s := range resp.Sessions {
		fmt.Fprintf(w, "%s  %s  %-12s features=0x%08X memory=%d KB\n",
			s.ID, s.StartedAt.Format("2006-01-02 15:04:05"), s.CPUVendor, s.CPUFeatures, s.MemoryKB)
	}
	return nil
}

// WriteEvents writes a page of one session's journal events.
func WriteEvents(w io.Writer, resp *models.EventsResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	if resp.Session != nil {
		fmt.Fprintf(w, "Session %s (%d events", resp.Session.ID, resp.Total)
		if resp.Kind != "" {
			fmt.Fprintf(w, " of kind %s", resp.Kind)
		}
		fmt.Fprintln(w, ")")
	}
	for _, e := range resp.Events {
		fmt.Fprintf(w, "%6d %-9s %s\n", e.ID, e.Kind, describeEvent(e))
	}
	if shown := resp.Offset + len(resp.Events); int64(shown) < resp.Total {
		fmt.Fprintf(w, "... %d more (use --offset %d)\n", resp.Total-int64(shown), shown)
	}
	return nil
}

func describeEvent(e *models.JournalEvent) string {
	switch e.Kind {
	case models.EventConsole:
		return e.Text
	case models.EventInsert:
		return fmt.Sprintf("%s -> %s slot=%d seq=%d", e.KeyFP, e.ValueFP, e.Slot, e.Sequence)
	case models.EventOverwrite:
		return fmt.Sprintf("abandoned=%d", e.Abandoned)
	case models.EventTask:
		return fmt.Sprintf("task %d for %s handled by %s", e.TaskID, e.Target, e.Entity)
	}
	return ""
}
