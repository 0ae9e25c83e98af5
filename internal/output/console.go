package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"pipelinehealth/internal/report"
)

const (
	FormatTable  = "table"
	FormatJSON   = "json"
	FormatNDJSON = "ndjson"
)

// ConsoleSink renders the audit to a terminal or pipe.
//
// Formats:
//   - table: one lipgloss table per repository class once the report is ready
//   - json: the report as a single indented JSON document
//   - ndjson: lifecycle events streamed as they happen, then the report
type ConsoleSink struct {
	writer      io.Writer
	format      string
	onlyFailing bool
	mu          sync.Mutex
}

func NewConsoleSink(w io.Writer, format string, onlyFailing bool) (*ConsoleSink, error) {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = FormatTable
	}
	switch format {
	case FormatTable, FormatJSON, FormatNDJSON:
	default:
		return nil, fmt.Errorf("unsupported console format: %s", format)
	}
	return &ConsoleSink{writer: w, format: format, onlyFailing: onlyFailing}, nil
}

func (s *ConsoleSink) Event(e Event) error {
	if s.format != FormatNDJSON {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := json.NewEncoder(s.writer).Encode(e); err != nil {
		return err
	}
	return flushIfPossible(s.writer)
}

func (s *ConsoleSink) Report(r *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case FormatJSON:
		enc := json.NewEncoder(s.writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return err
		}
	case FormatNDJSON:
		if err := json.NewEncoder(s.writer).Encode(Event{Type: EventReport, Report: r}); err != nil {
			return err
		}
	default:
		for i, t := range r.Tables() {
			if i > 0 {
				if _, err := fmt.Fprintln(s.writer); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(s.writer, renderTable(t, s.onlyFailing)); err != nil {
				return err
			}
		}
	}
	return flushIfPossible(s.writer)
}

func (s *ConsoleSink) Close() error { return nil }

type flusher interface {
	Flush() error
}

func flushIfPossible(w io.Writer) error {
	if f, ok := w.(flusher); ok {
		return f.Flush()
	}
	return nil
}
