package output

import (
	"errors"
	"fmt"

	"pipelinehealth/internal/report"
)

// Sink is a destination for audit output. Events stream while the audit runs;
// the report arrives once at the end.
type Sink interface {
	Event(e Event) error
	Report(r *report.Report) error
	Close() error
}

// Manager fans output out to every configured sink.
type Manager struct {
	sinks []Sink
}

func NewManager(sinks ...Sink) *Manager {
	m := &Manager{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *Manager) AddSink(s Sink) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	if s == nil {
		return fmt.Errorf("sink must not be nil")
	}
	m.sinks = append(m.sinks, s)
	return nil
}

func (m *Manager) Event(e Event) error {
	return m.each("writing event to sinks", func(s Sink) error { return s.Event(e) })
}

func (m *Manager) Report(r *report.Report) error {
	if r == nil {
		return fmt.Errorf("report must not be nil")
	}
	return m.each("writing report to sinks", func(s Sink) error { return s.Report(r) })
}

func (m *Manager) Close() error {
	return m.each("closing sinks", func(s Sink) error { return s.Close() })
}

func (m *Manager) each(action string, fn func(Sink) error) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	var errs []error
	for _, s := range m.sinks {
		if err := fn(s); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors %s: %w", action, errors.Join(errs...))
	}
	return nil
}
