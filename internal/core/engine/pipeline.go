package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/artswap/artswap/internal/core"
)

// Recorder receives per-run outcomes, usually for metrics.
type Recorder interface {
	RecordRun(summary core.RunSummary, elapsed time.Duration)
}

// Pipeline builds artwork records for a batch of cards and resolves them.
type Pipeline struct {
	Builder  *Builder
	Resolver *Resolver
	Logger   core.Logger
	Recorder Recorder
	Clock    func() time.Time
}

// DirectoryError reports an image directory a run cannot use.
type DirectoryError struct {
	Label string
	Dir   string
	Err   error
}

func (e *DirectoryError) Error() string {
	if e.Dir == "" {
		return fmt.Sprintf("%s directory %v", e.Label, e.Err)
	}
	return fmt.Sprintf("%s directory %s: %v", e.Label, e.Dir, e.Err)
}

func (e *DirectoryError) Unwrap() error { return e.Err }

// dirCache is implemented by locators that keep directory listings between
// lookups, such as *imagefs.Locator.
type dirCache interface {
	Forget(dir string)
	Count(dir string) (int, error)
}

// Run validates both directories, then builds and resolves. Cached directory
// listings are rescanned at the start of every run. Once the directories are
// accepted it always returns a complete report.
func (p *Pipeline) Run(ctx context.Context, cards []core.Card, gameImagesDir, replacementImagesDir string) (*core.RunReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if p == nil || p.Builder == nil || p.Resolver == nil {
		return nil, fmt.Errorf("pipeline is not configured")
	}
	if err := checkDir("game images", gameImagesDir); err != nil {
		return nil, err
	}
	if err := checkDir("replacement images", replacementImagesDir); err != nil {
		return nil, err
	}
	gameImages, err := rescan("game images", p.Builder.Locator, gameImagesDir, nil, "")
	if err != nil {
		return nil, err
	}
	replacementImages, err := rescan("replacement images", p.Resolver.Locator, replacementImagesDir, p.Builder.Locator, gameImagesDir)
	if err != nil {
		return nil, err
	}

	report := &core.RunReport{
		RunID:                uuid.NewString(),
		GameImagesDir:        gameImagesDir,
		ReplacementImagesDir: replacementImagesDir,
		StartedAt:            p.now(),
	}

	log := logger(p.Logger)
	log.Info("Match run started",
		zap.String("run_id", report.RunID),
		zap.Int("cards", len(cards)),
		zap.String("game_images_dir", gameImagesDir),
		zap.String("replacement_images_dir", replacementImagesDir),
		zap.Int("game_images", gameImages),
		zap.Int("replacement_images", replacementImages))

	built := p.Builder.Build(ctx, cards, gameImagesDir, replacementImagesDir)
	report.Artworks = p.Resolver.Resolve(ctx, built)
	report.FinishedAt = p.now()
	report.Summary = core.Summarize(report.Artworks)

	if p.Recorder != nil {
		p.Recorder.RecordRun(report.Summary, report.FinishedAt.Sub(report.StartedAt))
	}

	log.Info("Match run finished",
		zap.String("run_id", report.RunID),
		zap.Int("matched", report.Summary.Matched),
		zap.Int("ambiguous", report.Summary.Ambiguous),
		zap.Int("unmatched", report.Summary.Unmatched),
		zap.Int("index_errors", report.Summary.IndexErrors))
	return report, nil
}

func checkDir(label, dir string) error {
	if strings.TrimSpace(dir) == "" {
		return &DirectoryError{Label: label, Err: errors.New("is required")}
	}
	info, err := os.Stat(dir)
	if err != nil {
		return &DirectoryError{Label: label, Dir: dir, Err: err}
	}
	if !info.IsDir() {
		return &DirectoryError{Label: label, Dir: dir, Err: errors.New("is not a directory")}
	}
	return nil
}

// rescan drops a cached listing of dir and indexes it again, returning the
// image count, or -1 when the locator keeps no listings. A directory already
// rescanned by the same locator this run (prevLocator, prevDir) is only
// counted.
func rescan(label string, locator core.ImageLocator, dir string, prevLocator core.ImageLocator, prevDir string) (int, error) {
	cache, ok := locator.(dirCache)
	if !ok {
		return -1, nil
	}
	if locator != prevLocator || filepath.Clean(dir) != filepath.Clean(prevDir) {
		cache.Forget(dir)
	}
	n, err := cache.Count(dir)
	if err != nil {
		return 0, &DirectoryError{Label: label, Dir: dir, Err: err}
	}
	return n, nil
}

func (p *Pipeline) now() time.Time {
	if p != nil && p.Clock != nil {
		return p.Clock()
	}
	return time.Now().UTC()
}
