// Package cardfile reads card lists for matching and index imports.
//
// Supported formats are JSON, YAML and TOML documents holding either a bare
// list of cards or a "cards" list, plus plain text with one card name per line.
package cardfile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/artswap/artswap/internal/core"
)

// Format names accepted by Parse.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTOML = "toml"
	FormatText = "text"
)

type document struct {
	Cards []core.Card `json:"cards" yaml:"cards" toml:"cards"`
}

// Read loads cards from path, picking the format from its extension. "-"
// reads plain text from stdin.
func Read(path string) ([]core.Card, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("card file path is required")
	}
	if path == "-" {
		return Parse(os.Stdin, FormatText)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close() // nolint:errcheck

	cards, err := Parse(file, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cards, nil
}

// FormatFor maps a file extension to a format name.
func FormatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatText
	}
}

// Parse decodes cards from r. Cards with a blank name are dropped and names
// are trimmed; order is preserved.
func Parse(r io.Reader, format string) ([]core.Card, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var cards []core.Card
	switch format {
	case FormatJSON:
		cards, err = parseJSON(data)
	case FormatYAML:
		cards, err = parseYAML(data)
	case FormatTOML:
		var doc document
		if err = toml.Unmarshal(data, &doc); err != nil {
			err = fmt.Errorf("decode toml: %w", err)
		}
		cards = doc.Cards
	case FormatText, "":
		cards, err = parseText(data)
	default:
		return nil, fmt.Errorf("unsupported card file format: %s", format)
	}
	if err != nil {
		return nil, err
	}
	return clean(cards), nil
}

func parseJSON(data []byte) ([]core.Card, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var cards []core.Card
		if err := json.Unmarshal(trimmed, &cards); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return cards, nil
	}
	var doc document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return doc.Cards, nil
}

func parseYAML(data []byte) ([]core.Card, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		var cards []core.Card
		if err := root.Decode(&cards); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		return cards, nil
	}
	var doc document
	if err := root.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return doc.Cards, nil
}

func parseText(data []byte) ([]core.Card, error) {
	var cards []core.Card
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		cards = append(cards, core.Card{Name: raw})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cards, nil
}

func clean(cards []core.Card) []core.Card {
	out := make([]core.Card, 0, len(cards))
	for _, c := range cards {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		c.ID = strings.TrimSpace(c.ID)
		c.Passcode = strings.TrimSpace(c.Passcode)
		c.Source = strings.TrimSpace(c.Source)
		out = append(out, c)
	}
	return out
}
