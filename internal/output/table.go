package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"pipelinehealth/internal/report"
	"pipelinehealth/internal/rules"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	nameStyle   = cellStyle.Bold(true)
	okStyle     = cellStyle.Foreground(lipgloss.Color("2"))
	errStyle    = cellStyle.Foreground(lipgloss.Color("196"))
	dimStyle    = cellStyle.Faint(true)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func markerStyle(m report.Marker) lipgloss.Style {
	switch m {
	case report.MarkerSuccess:
		return okStyle
	case report.MarkerFailure:
		return errStyle
	default:
		return dimStyle
	}
}

// renderTable draws one report table. Rows without a failure are dropped when
// onlyFailing is set.
func renderTable(t *report.Table, onlyFailing bool) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(t.Title))
	b.WriteString("\n")

	rows := make([]rules.Evaluation, 0, len(t.Rows))
	for _, row := range t.Rows {
		if onlyFailing && !row.Failed() {
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		b.WriteString("No repositories to show.\n")
		return b.String()
	}

	headers := make([]string, 0, len(t.Columns)+1)
	headers = append(headers, "Repository")
	for _, c := range t.Columns {
		headers = append(headers, c.Name)
	}

	markers := make([][]report.Marker, len(rows))
	cells := make([][]string, len(rows))
	for i, row := range rows {
		markers[i] = make([]report.Marker, len(t.Columns))
		cells[i] = make([]string, 0, len(t.Columns)+1)
		cells[i] = append(cells[i], row.Name)
		for j, c := range t.Columns {
			v, _ := row.Verdict(c.Key)
			markers[i][j] = report.MarkerFor(v)
			cells[i] = append(cells[i], markers[i][j].Symbol())
		}
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return nameStyle
			case row >= 0 && row < len(markers) && col-1 < len(markers[row]):
				return markerStyle(markers[row][col-1])
			default:
				return cellStyle
			}
		})

	b.WriteString(tbl.String())
	b.WriteString("\n")
	fmt.Fprintf(&b, "%d repositories, %d failing\n", len(t.Rows), t.Failing())
	return b.String()
}
