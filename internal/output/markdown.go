package output

import (
	"fmt"
	"strings"

	"github.com/artswap/artswap/internal/core"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// FormatReport renders a match report as Markdown.
func (f *MarkdownFormatter) FormatReport(report *core.RunReport) (string, error) {
	if report == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Artwork matches for %s\n\n", escapeMarkdownCell(report.GameImagesDir)))
	sb.WriteString("| Card | Game Image | Replacement | Status | Notes |\n")
	sb.WriteString("|------|------------|-------------|--------|-------|\n")

	for _, a := range report.Artworks {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			escapeMarkdownCell(a.GameCard.Name),
			escapeMarkdownCell(gameImageLabel(a)),
			escapeMarkdownCell(replacementLabel(a)),
			escapeMarkdownCell(statusLabel(a)),
			escapeMarkdownCell(notesLabel(a)),
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Summary**: %s\n", summaryLine(report.Summary)))
	return sb.String(), nil
}

// FormatCards renders cards as Markdown.
func (f *MarkdownFormatter) FormatCards(cards []core.Card) (string, error) {
	var sb strings.Builder
	sb.WriteString("| Name | ID | Source |\n")
	sb.WriteString("|------|----|--------|\n")
	for _, c := range cards {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
			escapeMarkdownCell(c.Name),
			escapeMarkdownCell(cardKey(c)),
			escapeMarkdownCell(c.Source),
		))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
