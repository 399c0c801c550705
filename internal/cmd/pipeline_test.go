package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artswap/artswap/internal/config"
	"github.com/artswap/artswap/internal/core"
	"github.com/artswap/artswap/internal/core/cardindex"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	v := viper.New()
	config.SetDefaults(v)
	v.Set("store.driver", "sqlite")
	v.Set("store.path", filepath.Join(t.TempDir(), "cards.db"))
	v.Set("images.placeholder_path", filepath.Join(t.TempDir(), "placeholder.png"))
	v.Set("images.placeholder_size", 64)

	cfg, err := config.Load(v)
	require.NoError(t, err)
	return cfg
}

func writeImages(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("img"), 0644))
	}
}

func TestStoreBackedPipeline(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	handle, err := openIndex(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })

	require.NotNil(t, handle.Store)
	require.NotNil(t, handle.Cache, "cache is on by default")
	_, ok := handle.Index.(*cardindex.Cached)
	require.True(t, ok)

	_, err = handle.Store.ImportCards(ctx, []core.Card{
		{ID: "46986414", Name: "Dark Magician"},
		{Name: "Kuriboh"},
	})
	require.NoError(t, err)

	gameDir := t.TempDir()
	replDir := t.TempDir()
	writeImages(t, gameDir, "Dark Magician.png", "Kuriboh.png", "Mystery Card.png")
	writeImages(t, replDir, "46986414.jpg", "Kuriboh.png")

	pipeline, err := buildPipeline(cfg, handle.Index, nil, "cli")
	require.NoError(t, err)

	report, err := pipeline.Run(ctx, []core.Card{
		{Name: "Dark Magician"},
		{Name: "Kuriboh"},
		{Name: "Mystery Card"},
	}, gameDir, replDir)
	require.NoError(t, err)
	require.Len(t, report.Artworks, 3)

	magician := report.Artworks[0]
	assert.Equal(t, core.StatusMatched, magician.Status)
	assert.Equal(t, "46986414.jpg", magician.ReplacementImageFile.FileName())

	assert.Equal(t, core.StatusMatched, report.Artworks[1].Status)

	mystery := report.Artworks[2]
	assert.Equal(t, core.StatusUnmatched, mystery.Status)
	assert.False(t, mystery.IsMatched)
	assert.Equal(t, cfg.Images.PlaceholderPath, mystery.ReplacementImageFile.Path)

	assert.Equal(t, 2, report.Summary.Matched)
	assert.Equal(t, 1, report.Summary.Unmatched)
	assert.FileExists(t, cfg.Images.PlaceholderPath)

	hits, misses := handle.Cache.Stats()
	assert.Zero(t, hits)
	assert.Equal(t, int64(3), misses)
}

func TestOpenIndexWebDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Index.Driver = "web"
	cfg.Index.CacheSize = 0
	cfg.Index.Web.BaseURL = "https://cards.example"

	handle, err := openIndex(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })

	web, ok := handle.Index.(*cardindex.WebIndex)
	require.True(t, ok)
	assert.Nil(t, handle.Cache)
	assert.Equal(t, "https://cards.example", web.BaseURL)
	assert.Equal(t, "q", web.QueryParam)
	require.NotNil(t, web.Limiter)
	assert.Same(t, handle.Store, web.Limiter.Store)
}

func TestBuildPipelineRejectsUnknownPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.Disambiguation = "random"

	_, err := buildPipeline(cfg, nil, nil, "cli")
	require.Error(t, err)
}

func TestResolveCards(t *testing.T) {
	cards, err := resolveCards([]string{" Kuriboh ", "", "Dark Magician"}, "")
	require.NoError(t, err)
	assert.Equal(t, []core.Card{{Name: "Kuriboh"}, {Name: "Dark Magician"}}, cards)

	_, err = resolveCards(nil, "")
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "deck.txt")
	require.NoError(t, os.WriteFile(path, []byte("# deck\nKuriboh\n"), 0644))

	_, err = resolveCards([]string{"Kuriboh"}, path)
	require.Error(t, err, "positional names and --cards are exclusive")

	cards, err = resolveCards(nil, path)
	require.NoError(t, err)
	assert.Equal(t, []core.Card{{Name: "Kuriboh"}}, cards)
}

func TestImportLockPath(t *testing.T) {
	cfg := testConfig(t)
	assert.Equal(t, storeLocation(cfg)+".lock", importLockPath(cfg))

	cfg.Store.URL = "libsql://cards.example"
	assert.Equal(t, "index-import.lock", filepath.Base(importLockPath(cfg)))
}

func TestNewMatchHandlerAppliesServerLimits(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.MaxCards = 3
	cfg.Server.ImageRoots = []string{"/srv/cards"}

	handle, err := openIndex(context.Background(), cfg)
	require.NoError(t, err)
	defer handle.Close() // nolint:errcheck

	pipeline, err := buildPipeline(cfg, handle.Index, nil, "http")
	require.NoError(t, err)

	h := newMatchHandler(cfg, pipeline, handle.Index)
	assert.Same(t, pipeline, h.Runner)
	assert.Equal(t, 3, h.MaxCards)
	assert.Equal(t, []string{"/srv/cards"}, h.Roots)

	// Defaults keep requests bounded.
	assert.Equal(t, 500, newMatchHandler(testConfig(t), pipeline, handle.Index).MaxCards)
}
