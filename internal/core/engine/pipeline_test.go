package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/artswap/artswap/internal/core"
	"github.com/artswap/artswap/internal/core/imagefs"
)

type recorderStub struct {
	runs []core.RunSummary
}

func (r *recorderStub) RecordRun(summary core.RunSummary, _ time.Duration) {
	r.runs = append(r.runs, summary)
}

func touch(t *testing.T, dir string, files ...string) {
	t.Helper()
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("img"), 0644))
	}
}

func TestPipelineRunEndToEnd(t *testing.T) {
	gameDir := t.TempDir()
	replDir := t.TempDir()
	touch(t, gameDir, "Blue-Eyes White Dragon.png", "Obscure Card.png")
	touch(t, replDir, "Blue-Eyes White Dragon (Alt Art).png", "Kuriboh.jpg")

	ph, err := imagefs.EnsurePlaceholder(imagefs.DefaultPlaceholderPath(t.TempDir()), 59)
	require.NoError(t, err)

	index := &stubIndex{results: map[string][]core.Card{
		"Blue-Eyes White Dragon": names("Blue-Eyes White Dragon (Alt Art)", "Blue-Eyes Ultimate Dragon"),
		"Kuriboh":                names("Kuriboh"),
	}}
	locator := imagefs.NewLocator(nil)
	log, logs := observedLogger()
	recorder := &recorderStub{}

	pipeline := &Pipeline{
		Builder:  &Builder{Locator: locator, Logger: log},
		Resolver: &Resolver{Index: index, Locator: locator, Placeholder: ph, Logger: log},
		Logger:   log,
		Recorder: recorder,
	}

	report, err := pipeline.Run(context.Background(), names("Blue-Eyes White Dragon", "Obscure Card", "Kuriboh"), gameDir, replDir)
	require.NoError(t, err)
	_, err = uuid.Parse(report.RunID)
	require.NoError(t, err)
	require.False(t, report.FinishedAt.Before(report.StartedAt))
	require.Len(t, report.Artworks, 3)

	blue := report.Artworks[0]
	require.True(t, blue.GameImageFile.Found())
	require.Equal(t, "Blue-Eyes White Dragon (Alt Art)", blue.ReplacementImageMonsterName)
	require.Equal(t, core.StatusAmbiguous, blue.Status)

	obscure := report.Artworks[1]
	require.True(t, obscure.GameImageFile.Found())
	require.False(t, obscure.IsMatched)
	require.Equal(t, ph, obscure.ReplacementImageFile)

	kuriboh := report.Artworks[2]
	require.False(t, kuriboh.GameImageFile.Found())
	require.Equal(t, "Kuriboh.jpg", kuriboh.ReplacementImageFile.FileName())

	require.Equal(t, core.RunSummary{
		Total:             3,
		Matched:           1,
		Ambiguous:         1,
		Unmatched:         1,
		GameImagesMissing: 1,
	}, report.Summary)
	require.Len(t, recorder.runs, 1)
	require.Equal(t, report.Summary, recorder.runs[0])
	require.Equal(t, 1, logs.FilterMessage("Match run finished").Len())
}

func TestPipelineRejectsMissingDirectories(t *testing.T) {
	pipeline := &Pipeline{Builder: &Builder{}, Resolver: &Resolver{}}

	_, err := pipeline.Run(context.Background(), nil, "", t.TempDir())
	require.ErrorContains(t, err, "game images directory is required")
	var dirErr *DirectoryError
	require.ErrorAs(t, err, &dirErr)
	require.Equal(t, "game images", dirErr.Label)

	missing := filepath.Join(t.TempDir(), "missing")
	_, err = pipeline.Run(context.Background(), nil, t.TempDir(), missing)
	require.ErrorContains(t, err, "replacement images directory")
	require.ErrorAs(t, err, &dirErr)
	require.Equal(t, missing, dirErr.Dir)
	require.ErrorIs(t, err, os.ErrNotExist)

	file := filepath.Join(t.TempDir(), "file.png")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	_, err = pipeline.Run(context.Background(), nil, file, t.TempDir())
	require.ErrorContains(t, err, "is not a directory")
}

func TestPipelineRescansDirectoriesEachRun(t *testing.T) {
	gameDir := t.TempDir()
	replDir := t.TempDir()
	touch(t, gameDir, "Kuriboh.png")
	touch(t, replDir, "Kuriboh.png")

	ph, err := imagefs.EnsurePlaceholder(imagefs.DefaultPlaceholderPath(t.TempDir()), 59)
	require.NoError(t, err)
	index := &stubIndex{results: map[string][]core.Card{
		"Kuriboh":       names("Kuriboh"),
		"Dark Magician": names("Dark Magician"),
	}}
	locator := imagefs.NewLocator(nil)
	log, logs := observedLogger()
	pipeline := &Pipeline{
		Builder:  &Builder{Locator: locator, Logger: log},
		Resolver: &Resolver{Index: index, Locator: locator, Placeholder: ph, Logger: log},
		Logger:   log,
	}
	cards := names("Kuriboh", "Dark Magician")

	first, err := pipeline.Run(context.Background(), cards, gameDir, replDir)
	require.NoError(t, err)
	require.False(t, first.Artworks[1].GameImageFile.Found())
	require.Equal(t, ph, first.Artworks[1].ReplacementImageFile)

	// Images dropped in between runs of a long-lived pipeline are picked up.
	touch(t, gameDir, "Dark Magician.png")
	touch(t, replDir, "Dark Magician.png")

	second, err := pipeline.Run(context.Background(), cards, gameDir, replDir)
	require.NoError(t, err)
	require.True(t, second.Artworks[1].GameImageFile.Found())
	require.Equal(t, "Dark Magician.png", second.Artworks[1].ReplacementImageFile.FileName())
	require.Equal(t, 0, second.Summary.GameImagesMissing)

	started := logs.FilterMessage("Match run started").All()
	require.Len(t, started, 2)
	require.EqualValues(t, 2, started[1].ContextMap()["game_images"])
	require.EqualValues(t, 2, started[1].ContextMap()["replacement_images"])
}

func TestPipelineSharedDirectoryScannedOnce(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "Kuriboh.png")
	locator := &countingLocator{Locator: imagefs.NewLocator(nil)}
	pipeline := &Pipeline{
		Builder:  &Builder{Locator: locator},
		Resolver: &Resolver{Index: &stubIndex{}, Locator: locator},
	}

	_, err := pipeline.Run(context.Background(), names("Kuriboh"), dir, dir)
	require.NoError(t, err)
	require.Equal(t, 1, locator.forgets)
}

func TestPipelineRejectsOversizedDirectory(t *testing.T) {
	gameDir := t.TempDir()
	touch(t, gameDir, "A.png", "B.png", "C.png")
	locator := imagefs.NewLocator(nil)
	locator.MaxFiles = 2
	pipeline := &Pipeline{
		Builder:  &Builder{Locator: locator},
		Resolver: &Resolver{Index: &stubIndex{}, Locator: locator},
	}

	_, err := pipeline.Run(context.Background(), names("A"), gameDir, t.TempDir())
	var dirErr *DirectoryError
	require.ErrorAs(t, err, &dirErr)
	require.Equal(t, "game images", dirErr.Label)
	require.ErrorIs(t, err, imagefs.ErrTooManyImages)
}

func TestPipelineRequiresStages(t *testing.T) {
	_, err := (&Pipeline{}).Run(context.Background(), nil, t.TempDir(), t.TempDir())
	require.Error(t, err)
}

func TestPipelineEmptyBatch(t *testing.T) {
	pipeline := &Pipeline{Builder: &Builder{}, Resolver: &Resolver{}}
	report, err := pipeline.Run(context.Background(), nil, t.TempDir(), t.TempDir())
	require.NoError(t, err)
	require.Empty(t, report.Artworks)
	require.Equal(t, core.RunSummary{}, report.Summary)
}
