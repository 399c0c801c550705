package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/artswap/artswap/internal/core"
)

func TestBuilderEmptyInput(t *testing.T) {
	log, logs := observedLogger()
	builder := &Builder{Locator: &stubLocator{}, Logger: log}

	artworks := builder.Build(context.Background(), nil, "/game", "/repl")
	require.NotNil(t, artworks)
	require.Empty(t, artworks)
	require.Equal(t, 1, logs.FilterMessageSnippet("Created 0 artwork records").Len())
}

func TestBuilderKeepsInputOrder(t *testing.T) {
	locator := &stubLocator{
		files: map[string]map[string]string{
			"/game": {"Kuriboh": "Kuriboh.png", "Dark Magician": "Dark Magician.jpg"},
		},
	}
	builder := &Builder{Locator: locator, Workers: 4}

	cards := names("Kuriboh", "Obscure Card", "Dark Magician")
	artworks := builder.Build(context.Background(), cards, "/game", "/repl")

	require.Len(t, artworks, 3)
	for i, a := range artworks {
		require.Equal(t, cards[i].Name, a.GameImageMonsterName)
		require.Equal(t, cards[i], a.GameCard)
		require.Equal(t, "/game", a.GameImagesDir)
		require.Equal(t, "/repl", a.ReplacementImagesDir)
		require.False(t, a.IsMatched)
		require.Equal(t, core.StatusPending, a.Status)
		require.False(t, a.ReplacementImageFile.Found())
	}
	require.Equal(t, "Kuriboh.png", artworks[0].GameImageFile.FileName())
	require.False(t, artworks[1].GameImageFile.Found())
	require.Equal(t, "Dark Magician.jpg", artworks[2].GameImageFile.FileName())
	require.EqualValues(t, 3, locator.calls.Load())
}

func TestBuilderContainsLookupFailures(t *testing.T) {
	log, logs := observedLogger()
	locator := &stubLocator{
		files: map[string]map[string]string{"/game": {"Kuriboh": "Kuriboh.png"}},
		fail:  map[string]error{"Broken": errors.New("permission denied")},
		panic: map[string]bool{"Panics": true},
	}
	builder := &Builder{Locator: locator, Logger: log, Workers: 2}

	artworks := builder.Build(context.Background(), names("Broken", "Panics", "Kuriboh", "Missing"), "/game", "/repl")
	require.Len(t, artworks, 4)
	require.False(t, artworks[0].GameImageFile.Found())
	require.False(t, artworks[1].GameImageFile.Found())
	require.True(t, artworks[2].GameImageFile.Found())
	require.False(t, artworks[3].GameImageFile.Found())

	// Plain not-found is expected and stays quiet.
	require.Equal(t, 2, logs.FilterMessage("Game image lookup failed").Len())
}

func TestBuilderLookupTimeout(t *testing.T) {
	locator := &stubLocator{
		files: map[string]map[string]string{"/game": {"Slow": "Slow.png"}},
		delay: 200 * time.Millisecond,
	}
	builder := &Builder{Locator: locator, LookupTimeout: 10 * time.Millisecond}

	artworks := builder.Build(context.Background(), names("Slow"), "/game", "/repl")
	require.Len(t, artworks, 1)
	require.False(t, artworks[0].GameImageFile.Found())
}

func TestBuilderLargeBatch(t *testing.T) {
	files := map[string]string{}
	var cards []core.Card
	for i := 0; i < 500; i++ {
		name := fmt.Sprintf("Card %03d", i)
		cards = append(cards, core.Card{Name: name})
		if i%2 == 0 {
			files[name] = name + ".png"
		}
	}
	builder := &Builder{Locator: &stubLocator{files: map[string]map[string]string{"/game": files}}, Workers: 16}

	artworks := builder.Build(context.Background(), cards, "/game", "/repl")
	require.Len(t, artworks, len(cards))
	for i, a := range artworks {
		require.Equal(t, cards[i].Name, a.GameImageMonsterName)
		require.Equal(t, i%2 == 0, a.GameImageFile.Found())
	}
}

func TestBuilderCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	builder := &Builder{Locator: &stubLocator{}, Workers: 1}
	artworks := builder.Build(ctx, names("A", "B", "C"), "/game", "/repl")
	require.Len(t, artworks, 3)
	for _, a := range artworks {
		require.Equal(t, core.StatusPending, a.Status)
	}
}

func TestBuilderReportsElapsed(t *testing.T) {
	log, logs := observedLogger()
	builder := &Builder{Locator: &stubLocator{}, Logger: log, Clock: fixedClock()}

	builder.Build(context.Background(), names("A", "B"), "/game", "/repl")
	require.Equal(t, []string{"Created 2 artwork records in 0.25s"}, messages(logs))
}
