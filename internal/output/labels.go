package output

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/artswap/artswap/internal/core"
)

var (
	matchedColor   = color.New(color.FgGreen)
	ambiguousColor = color.New(color.FgYellow)
	unmatchedColor = color.New(color.FgRed)
)

func statusLabel(a core.Artwork) string {
	if a.Status == "" {
		return string(core.StatusPending)
	}
	return string(a.Status)
}

func colorStatus(a core.Artwork) string {
	label := statusLabel(a)
	switch a.Status {
	case core.StatusMatched:
		return matchedColor.Sprint(label)
	case core.StatusAmbiguous:
		return ambiguousColor.Sprint(label)
	case core.StatusUnmatched:
		return unmatchedColor.Sprint(label)
	default:
		return label
	}
}

func gameImageLabel(a core.Artwork) string {
	if !a.GameImageFile.Found() {
		return "(missing)"
	}
	return a.GameImageFile.FileName()
}

func replacementLabel(a core.Artwork) string {
	name := strings.TrimSpace(a.ReplacementImageMonsterName)
	file := a.ReplacementImageFile.FileName()
	switch {
	case file == "":
		return name
	case name == "" || name == a.ReplacementImageFile.Name:
		return file
	default:
		return fmt.Sprintf("%s (%s)", name, file)
	}
}

func notesLabel(a core.Artwork) string {
	var notes []string
	if a.Candidates > 1 {
		notes = append(notes, fmt.Sprintf("%d candidates", a.Candidates))
	}
	if a.ReplacementMissing {
		notes = append(notes, "replacement image missing")
	}
	if a.IndexError != "" {
		notes = append(notes, "index error: "+a.IndexError)
	}
	return strings.Join(notes, "; ")
}

func summaryLine(s core.RunSummary) string {
	line := fmt.Sprintf("%d matched, %d ambiguous, %d unmatched of %d", s.Matched, s.Ambiguous, s.Unmatched, s.Total)
	if s.IndexErrors > 0 {
		line += fmt.Sprintf(", %d index errors", s.IndexErrors)
	}
	if s.GameImagesMissing > 0 {
		line += fmt.Sprintf(", %d game images missing", s.GameImagesMissing)
	}
	if s.ReplacementsMissing > 0 {
		line += fmt.Sprintf(", %d replacement images missing", s.ReplacementsMissing)
	}
	return line
}

func cardKey(c core.Card) string {
	switch {
	case c.ID != "":
		return c.ID
	case c.Passcode != "":
		return c.Passcode
	default:
		return ""
	}
}
