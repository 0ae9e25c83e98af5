package rules

import "fmt"

// Verdict is the tri-state outcome of one check against one repository.
// The zero value is Unknown: the data the check needs was never retrieved.
type Verdict int8

const (
	Unknown Verdict = iota
	Pass
	Fail
)

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Verdict) UnmarshalText(b []byte) error {
	switch string(b) {
	case "pass":
		*v = Pass
	case "fail":
		*v = Fail
	case "unknown", "":
		*v = Unknown
	default:
		return fmt.Errorf("invalid verdict %q", string(b))
	}
	return nil
}

// VerdictOf maps a known boolean outcome to Pass or Fail.
func VerdictOf(ok bool) Verdict {
	if ok {
		return Pass
	}
	return Fail
}

// CheckVerdict pairs a registry key with its verdict.
type CheckVerdict struct {
	Key     string  `json:"key" yaml:"key"`
	Verdict Verdict `json:"verdict" yaml:"verdict"`
}

// Evaluation is an evaluated repository: its identity, class, and one verdict
// per registry check in registry order.
type Evaluation struct {
	Name     string         `json:"name" yaml:"name"`
	Class    string         `json:"class" yaml:"class"`
	Verdicts []CheckVerdict `json:"verdicts" yaml:"verdicts"`
}

// Verdict returns the verdict recorded for key.
func (e Evaluation) Verdict(key string) (Verdict, bool) {
	for _, cv := range e.Verdicts {
		if cv.Key == key {
			return cv.Verdict, true
		}
	}
	return Unknown, false
}

// Failed reports whether any check failed.
func (e Evaluation) Failed() bool {
	for _, cv := range e.Verdicts {
		if cv.Verdict == Fail {
			return true
		}
	}
	return false
}
