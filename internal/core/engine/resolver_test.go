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

var placeholder = core.NewImageFile("/tmp/artswap-placeholder.png")

func built(names ...string) []core.Artwork {
	out := make([]core.Artwork, 0, len(names))
	for _, n := range names {
		out = append(out, core.Artwork{
			GameCard:             core.Card{Name: n},
			GameImageMonsterName: n,
			GameImageFile:        core.NewImageFile("/game/" + n + ".png"),
			GameImagesDir:        "/game",
			ReplacementImagesDir: "/repl",
			Status:               core.StatusPending,
		})
	}
	return out
}

func replacementLocator() *stubLocator {
	return &stubLocator{files: map[string]map[string]string{
		"/repl": {
			"Blue-Eyes White Dragon (Alt Art)": "Blue-Eyes White Dragon (Alt Art).png",
			"Blue-Eyes Ultimate Dragon":        "Blue-Eyes Ultimate Dragon.png",
			"Dark Magician":                    "Dark Magician.jpg",
			"Kuriboh":                          "Kuriboh.png",
		},
	}}
}

func TestResolverAmbiguousPicksFirst(t *testing.T) {
	log, logs := observedLogger()
	index := &stubIndex{results: map[string][]core.Card{
		"Blue-Eyes White Dragon": names("Blue-Eyes White Dragon (Alt Art)", "Blue-Eyes Ultimate Dragon"),
	}}
	resolver := &Resolver{Index: index, Locator: replacementLocator(), Placeholder: placeholder, Logger: log}

	out := resolver.Resolve(context.Background(), built("Blue-Eyes White Dragon"))
	require.Len(t, out, 1)
	a := out[0]
	require.Equal(t, "Blue-Eyes White Dragon (Alt Art)", a.ReplacementImageMonsterName)
	require.True(t, a.IsMatched)
	require.Equal(t, core.StatusAmbiguous, a.Status)
	require.Equal(t, 2, a.Candidates)
	require.Equal(t, "Blue-Eyes White Dragon (Alt Art).png", a.ReplacementImageFile.FileName())

	entries := logs.FilterMessageSnippet("2 matching cards found for Blue-Eyes White Dragon").All()
	require.Len(t, entries, 1)
	require.Equal(t, "2 matching cards found for Blue-Eyes White Dragon picked: Blue-Eyes White Dragon (Alt Art).png", entries[0].Message)
	require.EqualValues(t, 2, entries[0].ContextMap()["candidates"])
}

func TestResolverNoMatchFallsBack(t *testing.T) {
	log, logs := observedLogger()
	index := &stubIndex{results: map[string][]core.Card{"Obscure Card": {}}}
	resolver := &Resolver{Index: index, Locator: replacementLocator(), Placeholder: placeholder, Logger: log}

	out := resolver.Resolve(context.Background(), built("Obscure Card"))
	a := out[0]
	require.False(t, a.IsMatched)
	require.Equal(t, core.StatusUnmatched, a.Status)
	require.Equal(t, "Obscure Card", a.ReplacementImageMonsterName)
	require.Equal(t, placeholder, a.ReplacementImageFile)
	require.Equal(t, 1, logs.FilterMessage("No match was found for Obscure Card - picking the error image").Len())
}

func TestResolverSingleMatch(t *testing.T) {
	index := &stubIndex{results: map[string][]core.Card{"Dark Magician": names("Dark Magician")}}
	resolver := &Resolver{Index: index, Locator: replacementLocator(), Placeholder: placeholder}

	a := resolver.Resolve(context.Background(), built("Dark Magician"))[0]
	require.True(t, a.IsMatched)
	require.Equal(t, core.StatusMatched, a.Status)
	require.Equal(t, "Dark Magician", a.ReplacementImageMonsterName)
	require.Equal(t, "/repl/Dark Magician.jpg", a.ReplacementImageFile.Path)
	require.Equal(t, 1, a.Candidates)
}

func TestResolverMatchWithoutReplacementImage(t *testing.T) {
	log, logs := observedLogger()
	index := &stubIndex{results: map[string][]core.Card{"Jinzo": names("Jinzo")}}
	resolver := &Resolver{Index: index, Locator: replacementLocator(), Placeholder: placeholder, Logger: log}

	a := resolver.Resolve(context.Background(), built("Jinzo"))[0]
	require.True(t, a.IsMatched)
	require.Equal(t, core.StatusMatched, a.Status)
	require.Equal(t, "Jinzo", a.ReplacementImageMonsterName)
	require.Equal(t, placeholder, a.ReplacementImageFile)
	require.True(t, a.ReplacementMissing)
	require.Equal(t, 1, logs.FilterMessageSnippet("Replacement image not found for Jinzo").Len())

	summary := core.Summarize([]core.Artwork{a})
	require.Equal(t, 1, summary.Matched)
	require.Equal(t, 1, summary.ReplacementsMissing)

	// Resolving again once the image exists clears the flag.
	locator := replacementLocator()
	locator.files["/repl"]["Jinzo"] = "Jinzo.png"
	resolver.Locator = locator
	again := resolver.Resolve(context.Background(), []core.Artwork{a})[0]
	require.False(t, again.ReplacementMissing)
	require.Equal(t, "Jinzo.png", again.ReplacementImageFile.FileName())
}

func TestResolverIndexFailureIsContained(t *testing.T) {
	log, logs := observedLogger()
	index := &stubIndex{
		results: map[string][]core.Card{"Kuriboh": names("Kuriboh")},
		errs: map[string]error{
			"Broken": core.NewIndexError(core.IndexUnavailable, "search", "Broken", errors.New("connection refused")),
		},
	}
	resolver := &Resolver{Index: index, Locator: replacementLocator(), Placeholder: placeholder, Logger: log}

	out := resolver.Resolve(context.Background(), built("Broken", "Kuriboh"))
	require.Len(t, out, 2)

	broken := out[0]
	require.False(t, broken.IsMatched)
	require.Equal(t, core.StatusUnmatched, broken.Status)
	require.Equal(t, "Broken", broken.ReplacementImageMonsterName)
	require.Equal(t, placeholder, broken.ReplacementImageFile)
	require.Contains(t, broken.IndexError, "connection refused")

	require.True(t, out[1].IsMatched)
	require.Equal(t, "Kuriboh", out[1].ReplacementImageMonsterName)
	require.Empty(t, out[1].IndexError)

	warn := logs.FilterMessage("Index error for Broken").All()
	require.Len(t, warn, 1)
	require.Equal(t, "unavailable", warn[0].ContextMap()["kind"])
}

type panickyIndex struct{}

func (panickyIndex) SearchCards(context.Context, string) ([]core.Card, error) {
	panic("driver bug")
}

func TestResolverIndexPanicFallsBack(t *testing.T) {
	resolver := &Resolver{Index: panickyIndex{}, Placeholder: placeholder}
	a := resolver.Resolve(context.Background(), built("Kuriboh"))[0]
	require.Equal(t, core.StatusUnmatched, a.Status)
	require.Equal(t, placeholder, a.ReplacementImageFile)
	require.Contains(t, a.IndexError, "driver bug")
}

func TestResolverCompletenessAndImmutability(t *testing.T) {
	index := &stubIndex{results: map[string][]core.Card{
		"Kuriboh":                names("Kuriboh"),
		"Blue-Eyes White Dragon": names("Blue-Eyes White Dragon (Alt Art)", "Blue-Eyes Ultimate Dragon"),
	}}
	resolver := &Resolver{Index: index, Locator: replacementLocator(), Placeholder: placeholder}

	input := built("Kuriboh", "Nope", "Blue-Eyes White Dragon", "Jinzo")
	snapshot := append([]core.Artwork(nil), input...)

	out := resolver.Resolve(context.Background(), input)
	require.Len(t, out, len(input))
	require.Equal(t, snapshot, input)
	for i, a := range out {
		require.Equal(t, input[i].GameImageMonsterName, a.GameImageMonsterName)
		require.True(t, a.ReplacementImageFile.Found(), a.GameImageMonsterName)
		require.NotEqual(t, core.StatusPending, a.Status)
	}
	require.Equal(t, []string{"Kuriboh", "Nope", "Blue-Eyes White Dragon", "Jinzo"}, index.searched())
}

func TestResolverIdempotent(t *testing.T) {
	index := &stubIndex{
		results: map[string][]core.Card{
			"Kuriboh":                names("Kuriboh"),
			"Blue-Eyes White Dragon": names("Blue-Eyes White Dragon (Alt Art)", "Blue-Eyes Ultimate Dragon"),
		},
		errs: map[string]error{"Broken": errors.New("boom")},
	}
	resolver := &Resolver{Index: index, Locator: replacementLocator(), Placeholder: placeholder}

	first := resolver.Resolve(context.Background(), built("Kuriboh", "Nope", "Blue-Eyes White Dragon", "Broken"))
	second := resolver.Resolve(context.Background(), first)
	require.Equal(t, first, second)
}

func TestResolverAmbiguityDeterministic(t *testing.T) {
	index := &stubIndex{results: map[string][]core.Card{
		"Dragon": names("Dragon B", "Dragon A", "Dragon C"),
	}}
	resolver := &Resolver{Index: index, Placeholder: placeholder}

	for i := 0; i < 10; i++ {
		a := resolver.Resolve(context.Background(), built("Dragon"))[0]
		require.Equal(t, "Dragon B", a.ReplacementImageMonsterName)
		require.True(t, a.IsMatched)
	}
}

func TestResolverExactPolicy(t *testing.T) {
	index := &stubIndex{results: map[string][]core.Card{
		"Dark Magician": names("Dark Magician Girl", "Dark Magician"),
	}}
	resolver := &Resolver{Index: index, Locator: replacementLocator(), Placeholder: placeholder, Policy: ExactNameFirst{}}

	a := resolver.Resolve(context.Background(), built("Dark Magician"))[0]
	require.Equal(t, "Dark Magician", a.ReplacementImageMonsterName)
	require.Equal(t, core.StatusAmbiguous, a.Status)
}

func TestResolverProgressLogs(t *testing.T) {
	log, logs := observedLogger()
	index := &stubIndex{results: map[string][]core.Card{"Kuriboh": names("Kuriboh")}}
	resolver := &Resolver{Index: index, Locator: replacementLocator(), Placeholder: placeholder, Logger: log, Clock: fixedClock()}

	resolver.Resolve(context.Background(), built("Kuriboh", "Nope"))
	require.Equal(t, []string{
		"1 of 2 processed - Kuriboh",
		"No match was found for Nope - picking the error image",
		"2 of 2 processed - Nope",
		"Processed 2 in 0.25s",
	}, messages(logs))
}

func TestResolverConcurrentKeepsLogOrder(t *testing.T) {
	log, logs := observedLogger()
	const total = 8
	index := &stubIndex{results: map[string][]core.Card{}, delays: map[string]time.Duration{}}
	var cards []string
	for i := 0; i < total; i++ {
		name := fmt.Sprintf("Card %d", i)
		cards = append(cards, name)
		index.results[name] = names(name)
		// Earlier records finish last.
		index.delays[name] = time.Duration(total-i) * 5 * time.Millisecond
	}
	resolver := &Resolver{Index: index, Placeholder: placeholder, Logger: log, Workers: 4}

	out := resolver.Resolve(context.Background(), built(cards...))
	require.Len(t, out, total)

	progress := logs.FilterMessageSnippet("processed - ").All()
	require.Len(t, progress, total)
	for i, entry := range progress {
		require.Equal(t, fmt.Sprintf("%d of %d processed - Card %d", i+1, total, i), entry.Message)
		require.Equal(t, cards[i], out[i].GameImageMonsterName)
		require.True(t, out[i].IsMatched)
	}
}

func TestResolverCancelledStillComplete(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	index := &stubIndex{results: map[string][]core.Card{"Kuriboh": names("Kuriboh")}}
	for _, workers := range []int{1, 4} {
		resolver := &Resolver{Index: index, Placeholder: placeholder, Workers: workers}
		out := resolver.Resolve(ctx, built("Kuriboh", "Dark Magician", "Jinzo"))
		require.Len(t, out, 3)
		for _, a := range out {
			require.Equal(t, placeholder, a.ReplacementImageFile)
			require.Equal(t, core.StatusUnmatched, a.Status)
			require.Contains(t, a.IndexError, "context canceled")
		}
	}
}

func TestPolicyByName(t *testing.T) {
	p, err := PolicyByName("")
	require.NoError(t, err)
	require.Equal(t, PolicyFirst, p.Name())

	p, err = PolicyByName(" Exact ")
	require.NoError(t, err)
	require.Equal(t, PolicyExact, p.Name())

	_, err = PolicyByName("random")
	require.Error(t, err)
}
