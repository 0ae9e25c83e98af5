package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"pipelinehealth/internal/report"
)

// RenderMarkdown writes the report as a Markdown document with one table per
// repository class followed by the check legend and verdict counts.
func RenderMarkdown(w io.Writer, r *report.Report) error {
	var b strings.Builder

	title := "Repository health"
	if r.Organization != "" {
		title = r.Organization + " repository health"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Generated %s.\n\n", r.GeneratedAt.UTC().Format(time.RFC3339))
	b.WriteString("Legend: ✔ pass, ✘ fail, ? unknown.\n")

	for _, t := range r.Tables() {
		fmt.Fprintf(&b, "\n## %s\n\n", t.Title)
		if len(t.Rows) == 0 {
			b.WriteString("No repositories.\n")
			continue
		}

		b.WriteString("| Repository |")
		for _, c := range t.Columns {
			fmt.Fprintf(&b, " %s |", escapeCell(c.Name))
		}
		b.WriteString("\n|---|")
		b.WriteString(strings.Repeat(":-:|", len(t.Columns)))
		b.WriteString("\n")

		for _, row := range t.Rows {
			fmt.Fprintf(&b, "| %s |", escapeCell(row.Name))
			for _, c := range t.Columns {
				v, _ := row.Verdict(c.Key)
				fmt.Fprintf(&b, " %s |", report.MarkerFor(v).Symbol())
			}
			b.WriteString("\n")
		}

		fmt.Fprintf(&b, "\n%d repositories, %d failing.\n\n", len(t.Rows), t.Failing())
		b.WriteString("| Check | Requirement | Pass | Fail | Unknown |\n")
		b.WriteString("|---|---|--:|--:|--:|\n")
		for i, c := range t.Columns {
			var s report.Summary
			if i < len(t.Summary) {
				s = t.Summary[i]
			}
			fmt.Fprintf(&b, "| %s | %s | %d | %d | %d |\n",
				escapeCell(c.Name), escapeCell(c.Description), s.Pass, s.Fail, s.Unknown)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
