// Package report assembles evaluated repositories into the pipeline and core
// repository tables.
package report

import (
	"time"

	"pipelinehealth/internal/classify"
	"pipelinehealth/internal/rules"
)

// Column describes one check column of a table.
type Column struct {
	Key         string `json:"key" yaml:"key"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Summary counts the verdicts of one check across a table.
type Summary struct {
	Key     string `json:"key" yaml:"key"`
	Pass    int    `json:"pass" yaml:"pass"`
	Fail    int    `json:"fail" yaml:"fail"`
	Unknown int    `json:"unknown" yaml:"unknown"`
}

type Table struct {
	Class   classify.Class     `json:"class" yaml:"class"`
	Title   string             `json:"title" yaml:"title"`
	Columns []Column           `json:"columns" yaml:"columns"`
	Rows    []rules.Evaluation `json:"rows" yaml:"rows"`
	Summary []Summary          `json:"summary" yaml:"summary"`
}

// Failing returns the number of rows with at least one failed check.
func (t *Table) Failing() int {
	n := 0
	for _, row := range t.Rows {
		if row.Failed() {
			n++
		}
	}
	return n
}

type Report struct {
	Organization string    `json:"organization" yaml:"organization"`
	GeneratedAt  time.Time `json:"generated_at" yaml:"generated_at"`
	Pipelines    Table     `json:"pipelines" yaml:"pipelines"`
	CoreRepos    Table     `json:"core_repos" yaml:"core_repos"`
}

// Tables returns the pipeline table followed by the core repository table.
func (r *Report) Tables() []*Table {
	return []*Table{&r.Pipelines, &r.CoreRepos}
}

// HasFailures reports whether any check failed for any repository.
func (r *Report) HasFailures() bool {
	for _, t := range r.Tables() {
		if t.Failing() > 0 {
			return true
		}
	}
	return false
}

type Settings struct {
	Organization string
	GeneratedAt  time.Time
}

// Build splits evaluations by class, preserving encounter order within each
// table.
func Build(evaluations []rules.Evaluation, settings Settings) *Report {
	generated := settings.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}

	r := &Report{
		Organization: settings.Organization,
		GeneratedAt:  generated,
		Pipelines:    newTable(classify.ClassPipeline, "Pipelines"),
		CoreRepos:    newTable(classify.ClassCore, "Core repositories"),
	}

	for _, ev := range evaluations {
		if classify.Class(ev.Class) == classify.ClassPipeline {
			r.Pipelines.Rows = append(r.Pipelines.Rows, ev)
		} else {
			r.CoreRepos.Rows = append(r.CoreRepos.Rows, ev)
		}
	}

	for _, t := range r.Tables() {
		t.Summary = summarize(t)
	}
	return r
}

// Columns returns the column metadata of a table of the given class.
func Columns(class classify.Class) []Column {
	checks := rules.Checks()
	cols := make([]Column, 0, len(checks))
	for _, c := range checks {
		cols = append(cols, Column{
			Key:         c.Key,
			Name:        c.Name,
			Description: c.DescriptionFor(class),
		})
	}
	return cols
}

func newTable(class classify.Class, title string) Table {
	return Table{
		Class:   class,
		Title:   title,
		Columns: Columns(class),
		Rows:    []rules.Evaluation{},
	}
}

func summarize(t *Table) []Summary {
	out := make([]Summary, len(t.Columns))
	index := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		out[i].Key = c.Key
		index[c.Key] = i
	}
	for _, row := range t.Rows {
		for _, cv := range row.Verdicts {
			i, ok := index[cv.Key]
			if !ok {
				continue
			}
			switch cv.Verdict {
			case rules.Pass:
				out[i].Pass++
			case rules.Fail:
				out[i].Fail++
			default:
				out[i].Unknown++
			}
		}
	}
	return out
}
