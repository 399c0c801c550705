package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/artswap/artswap/internal/core"
)

// Builder creates one artwork record per game card, locating each card's game
// image on a bounded worker pool.
type Builder struct {
	Locator core.ImageLocator
	Logger  core.Logger

	// Workers bounds concurrent lookups; defaults to GOMAXPROCS.
	Workers int
	// LookupTimeout treats a slower lookup as "not found" when positive.
	LookupTimeout time.Duration

	Clock func() time.Time
}

// Build returns len(cards) artworks; artwork i belongs to cards[i]. Lookup
// failures only affect their own card and never abort the batch.
func (b *Builder) Build(ctx context.Context, cards []core.Card, gameImagesDir, replacementImagesDir string) []core.Artwork {
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := b.now()

	artworks := make([]core.Artwork, len(cards))
	for i, card := range cards {
		artworks[i] = core.Artwork{
			GameCard:             card,
			GameImageMonsterName: card.Name,
			GameImagesDir:        gameImagesDir,
			ReplacementImagesDir: replacementImagesDir,
			IsMatched:            false,
			Status:               core.StatusPending,
		}
	}

	if len(cards) > 0 && b.Locator != nil {
		b.locateAll(ctx, artworks, gameImagesDir)
	}

	elapsed := b.now().Sub(startedAt)
	logger(b.Logger).Info(
		fmt.Sprintf("Created %d artwork records in %s", len(artworks), formatSeconds(elapsed)),
		zap.Int("count", len(artworks)),
		zap.Duration("elapsed", elapsed),
	)
	return artworks
}

func (b *Builder) locateAll(ctx context.Context, artworks []core.Artwork, dir string) {
	workers := b.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(artworks) {
		workers = len(artworks)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			file, err := b.lookup(ctx, artworks[i].GameCard, dir)
			if err != nil {
				if !errors.Is(err, core.ErrImageNotFound) {
					logger(b.Logger).Warn("Game image lookup failed",
						zap.String("card", artworks[i].GameImageMonsterName),
						zap.String("dir", dir),
						zap.Error(err))
				}
				continue
			}
			artworks[i].GameImageFile = file
		}
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go worker()
	}

sendLoop:
	for i := range artworks {
		select {
		case <-ctx.Done():
			break sendLoop
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
}

type lookupResult struct {
	file core.ImageFile
	err  error
}

func (b *Builder) lookup(ctx context.Context, card core.Card, dir string) (core.ImageFile, error) {
	if b.LookupTimeout <= 0 {
		return safeFind(ctx, b.Locator, card, dir)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, b.LookupTimeout)
	defer cancel()

	done := make(chan lookupResult, 1)
	go func() {
		file, err := safeFind(lookupCtx, b.Locator, card, dir)
		done <- lookupResult{file: file, err: err}
	}()

	select {
	case res := <-done:
		return res.file, res.err
	case <-lookupCtx.Done():
		return core.ImageFile{}, fmt.Errorf("lookup %q: %w", card.Name, lookupCtx.Err())
	}
}

// safeFind converts a locator panic into an error scoped to one card.
func safeFind(ctx context.Context, locator core.ImageLocator, card core.Card, dir string) (file core.ImageFile, err error) {
	defer func() {
		if r := recover(); r != nil {
			file = core.ImageFile{}
			err = fmt.Errorf("image locator panic: %v", r)
		}
	}()
	file, err = locator.FindImageFile(ctx, card, dir)
	if err == nil && !file.Found() {
		err = core.ErrImageNotFound
	}
	return file, err
}

func (b *Builder) now() time.Time {
	if b != nil && b.Clock != nil {
		return b.Clock()
	}
	return time.Now()
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func logger(l core.Logger) core.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
