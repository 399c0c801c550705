package output

import (
	"encoding/json"

	"github.com/artswap/artswap/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatReport renders a match report as JSON.
func (f *JSONFormatter) FormatReport(report *core.RunReport) (string, error) {
	if report == nil {
		return "", nil
	}
	return f.marshal(report)
}

// FormatCards renders cards as a JSON array, never null.
func (f *JSONFormatter) FormatCards(cards []core.Card) (string, error) {
	if cards == nil {
		cards = []core.Card{}
	}
	return f.marshal(cards)
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
