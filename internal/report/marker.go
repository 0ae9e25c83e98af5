package report

import "pipelinehealth/internal/rules"

// Marker is the presentation class of a verdict.
type Marker int

const (
	MarkerNeutral Marker = iota
	MarkerSuccess
	MarkerFailure
)

func MarkerFor(v rules.Verdict) Marker {
	switch v {
	case rules.Pass:
		return MarkerSuccess
	case rules.Fail:
		return MarkerFailure
	default:
		return MarkerNeutral
	}
}

// Symbol is the single-character rendering used in tables.
func (m Marker) Symbol() string {
	switch m {
	case MarkerSuccess:
		return "✔"
	case MarkerFailure:
		return "✘"
	default:
		return "?"
	}
}

func (m Marker) String() string {
	switch m {
	case MarkerSuccess:
		return "success"
	case MarkerFailure:
		return "failure"
	default:
		return "neutral"
	}
}
