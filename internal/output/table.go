package output

import (
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/artswap/artswap/internal/core"
)

// TableFormatter renders results as an ASCII table. Color enables ANSI status
// labels.
type TableFormatter struct {
	Color bool
}

// FormatReport renders a match report as a table.
func (f *TableFormatter) FormatReport(report *core.RunReport) (string, error) {
	if report == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Card", "Game Image", "Replacement", "Status", "Notes"})

	for i, a := range report.Artworks {
		status := statusLabel(a)
		if f.Color {
			status = colorStatus(a)
		}
		t.AppendRow(table.Row{
			i + 1,
			a.GameCard.Name,
			gameImageLabel(a),
			replacementLabel(a),
			status,
			notesLabel(a),
		})
	}

	t.AppendFooter(table.Row{"", "", "", "", summaryLine(report.Summary), ""})
	return t.Render(), nil
}

// FormatCards renders index cards as a table.
func (f *TableFormatter) FormatCards(cards []core.Card) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Name", "ID", "Source"})
	for i, c := range cards {
		t.AppendRow(table.Row{i + 1, c.Name, cardKey(c), c.Source})
	}
	return t.Render(), nil
}
