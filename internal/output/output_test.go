package output

import (
	"time"

	"pipelinehealth/internal/classify"
	"pipelinehealth/internal/report"
	"pipelinehealth/internal/rules"
)

func testEvaluation(name string, class classify.Class, fail bool) rules.Evaluation {
	ev := rules.Evaluation{Name: name, Class: string(class)}
	for i, key := range rules.Keys() {
		v := rules.Pass
		switch {
		case fail && key == rules.KeyWikis:
			v = rules.Fail
		case i == len(rules.Keys())-1:
			v = rules.Unknown
		}
		ev.Verdicts = append(ev.Verdicts, rules.CheckVerdict{Key: key, Verdict: v})
	}
	return ev
}

func testReport() *report.Report {
	return report.Build([]rules.Evaluation{
		testEvaluation("rnaseq", classify.ClassPipeline, false),
		testEvaluation("sarek", classify.ClassPipeline, true),
		testEvaluation("tools", classify.ClassCore, false),
	}, report.Settings{Organization: "nf-core", GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)})
}
