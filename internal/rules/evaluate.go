package rules

import "pipelinehealth/internal/classify"

// Evaluate computes one verdict per registry check for the subject.
// It performs no I/O; everything it reads must already be on the subject.
func Evaluate(subject *Subject, settings Settings) Evaluation {
	if subject == nil {
		subject = &Subject{}
	}
	class := subject.Class
	if class == "" {
		class = classify.ClassCore
	}

	in := &evalInput{
		subject:    subject,
		policy:     classify.PolicyFor(class, subject.Name, settings.Classes),
		ciContexts: settings.CIContexts,
		pushTeam:   settings.PushTeam,
		adminTeam:  settings.AdminTeam,
	}
	if in.pushTeam == "" {
		in.pushTeam = TeamAll
	}
	if in.adminTeam == "" {
		in.adminTeam = TeamCore
	}

	out := Evaluation{
		Name:     subject.Name,
		Class:    string(class),
		Verdicts: make([]CheckVerdict, 0, len(registry)),
	}
	for _, c := range registry {
		out.Verdicts = append(out.Verdicts, CheckVerdict{Key: c.Key, Verdict: c.eval(in)})
	}
	return out
}
