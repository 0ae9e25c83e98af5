package output

import (
	"pipelinehealth/internal/report"
	"pipelinehealth/internal/rules"
)

const (
	EventRunStarted    = "run.started"
	EventRepoEvaluated = "repo.evaluated"
	EventRepoSkipped   = "repo.skipped"
	EventRunFinished   = "run.finished"
	EventReport        = "report"
)

// Event is a lifecycle record streamed by NDJSON sinks, one JSON object per
// line. Aggregate formats only consume the final report.
type Event struct {
	Type       string            `json:"type"`
	Repo       string            `json:"repo,omitempty"`
	Evaluation *rules.Evaluation `json:"evaluation,omitempty"`
	Report     *report.Report    `json:"report,omitempty"`
	Message    string            `json:"message,omitempty"`
	Repos      int               `json:"repos,omitempty"`
	ExitCode   int               `json:"exit_code,omitempty"`
}

// EvaluatedEvent wraps one repository's evaluation.
func EvaluatedEvent(ev rules.Evaluation) Event {
	return Event{Type: EventRepoEvaluated, Repo: ev.Name, Evaluation: &ev}
}
