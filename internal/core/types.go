package core

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Card is a named entity sourced from the game collection or the replacement index.
type Card struct {
	ID       string `json:"id,omitempty" yaml:"id,omitempty" toml:"id,omitempty"`
	Name     string `json:"name" yaml:"name" toml:"name"`
	Passcode string `json:"passcode,omitempty" yaml:"passcode,omitempty" toml:"passcode,omitempty"`
	Source   string `json:"source,omitempty" yaml:"source,omitempty" toml:"source,omitempty"`
}

// ImageFile points at a concrete image on disk. The zero value means "not found".
type ImageFile struct {
	Path string `json:"path,omitempty"`
	Name string `json:"name,omitempty"`
	Ext  string `json:"ext,omitempty"`
}

// NewImageFile describes the image stored at path.
func NewImageFile(path string) ImageFile {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return ImageFile{
		Path: path,
		Name: strings.TrimSuffix(base, ext),
		Ext:  strings.ToLower(ext),
	}
}

// Found reports whether the lookup produced a file.
func (f ImageFile) Found() bool {
	return strings.TrimSpace(f.Path) != ""
}

// FileName returns the base name of the image including extension.
func (f ImageFile) FileName() string {
	if !f.Found() {
		return ""
	}
	return filepath.Base(f.Path)
}

// MatchStatus is the resolution outcome recorded on an artwork.
type MatchStatus string

const (
	StatusPending   MatchStatus = "pending"
	StatusMatched   MatchStatus = "matched"
	StatusAmbiguous MatchStatus = "ambiguous"
	StatusUnmatched MatchStatus = "unmatched"
)

// Artwork tracks a game card image and its replacement resolution.
type Artwork struct {
	GameCard             Card      `json:"game_card"`
	GameImageMonsterName string    `json:"game_image_monster_name"`
	GameImageFile        ImageFile `json:"game_image_file"`
	GameImagesDir        string    `json:"game_images_dir"`
	ReplacementImagesDir string    `json:"replacement_images_dir"`

	ReplacementImageMonsterName string    `json:"replacement_image_monster_name,omitempty"`
	ReplacementImageFile        ImageFile `json:"replacement_image_file"`
	// IsMatched is set whenever the index returned a candidate, even when the
	// candidate has no image in the replacement directory. ReplacementMissing
	// marks that case; ReplacementImageFile then holds the placeholder.
	IsMatched          bool        `json:"is_matched"`
	ReplacementMissing bool        `json:"replacement_missing,omitempty"`
	Status             MatchStatus `json:"status"`
	Candidates         int         `json:"candidates"`
	IndexError         string      `json:"index_error,omitempty"`
}

// RunSummary aggregates outcomes across a pipeline run.
type RunSummary struct {
	Total               int `json:"total"`
	Matched             int `json:"matched"`
	Ambiguous           int `json:"ambiguous"`
	Unmatched           int `json:"unmatched"`
	IndexErrors         int `json:"index_errors"`
	GameImagesMissing   int `json:"game_images_missing"`
	ReplacementsMissing int `json:"replacements_missing"`
}

// Summarize counts resolution outcomes for artworks.
func Summarize(artworks []Artwork) RunSummary {
	summary := RunSummary{Total: len(artworks)}
	for _, a := range artworks {
		switch a.Status {
		case StatusMatched:
			summary.Matched++
		case StatusAmbiguous:
			summary.Ambiguous++
		case StatusUnmatched:
			summary.Unmatched++
		}
		if a.IndexError != "" {
			summary.IndexErrors++
		}
		if !a.GameImageFile.Found() {
			summary.GameImagesMissing++
		}
		if a.ReplacementMissing {
			summary.ReplacementsMissing++
		}
	}
	return summary
}

// RunReport captures a complete build+resolve run.
type RunReport struct {
	RunID                string     `json:"run_id"`
	GameImagesDir        string     `json:"game_images_dir"`
	ReplacementImagesDir string     `json:"replacement_images_dir"`
	StartedAt            time.Time  `json:"started_at"`
	FinishedAt           time.Time  `json:"finished_at"`
	Summary              RunSummary `json:"summary"`
	Artworks             []Artwork  `json:"artworks"`
}

// ImageLocator maps a card to the best matching image inside a directory.
// Implementations must be safe for concurrent use.
type ImageLocator interface {
	FindImageFile(ctx context.Context, card Card, dir string) (ImageFile, error)
}

// CardIndex searches replacement candidates by name.
type CardIndex interface {
	SearchCards(ctx context.Context, name string) ([]Card, error)
}

// Logger is the observability sink used by the pipeline.
type Logger interface {
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

// RateLimitState captures per-endpoint request accounting.
type RateLimitState struct {
	RequestCount int
	WindowStart  time.Time
	BackoffUntil *time.Time
	Last429At    *time.Time
}
