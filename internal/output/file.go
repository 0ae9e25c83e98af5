package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"pipelinehealth/internal/report"
)

const (
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
)

// InferFileFormat maps an output file extension to its format.
func InferFileFormat(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return FormatJSON, nil
	case ".ndjson", ".jsonl":
		return FormatNDJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("cannot infer output format from file extension %q", ext)
	}
}

// FileSink writes the audit to a file. NDJSON streams events; every other
// format writes the report once it is available.
type FileSink struct {
	path   string
	format string
	file   *os.File
	mu     sync.Mutex
}

func NewFileSink(path, format string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("output path required")
	}
	if format == "" {
		inferred, err := InferFileFormat(path)
		if err != nil {
			return nil, err
		}
		format = inferred
	}
	switch format {
	case FormatJSON, FormatNDJSON, FormatYAML, FormatMarkdown:
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return &FileSink{path: path, format: format, file: f}, nil
}

func (s *FileSink) Event(e Event) error {
	if s.format != FormatNDJSON {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.NewEncoder(s.file).Encode(e)
}

func (s *FileSink) Report(r *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case FormatJSON:
		enc := json.NewEncoder(s.file)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatNDJSON:
		return json.NewEncoder(s.file).Encode(Event{Type: EventReport, Report: r})
	case FormatYAML:
		enc := yaml.NewEncoder(s.file)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatMarkdown:
		return RenderMarkdown(s.file, r)
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}
