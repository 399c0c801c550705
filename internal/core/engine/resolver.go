package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/artswap/artswap/internal/core"
)

// Resolver matches each artwork against the card index and fills in the
// replacement side. Records are processed in input order; with Workers > 1 the
// index queries run concurrently but every log line is still emitted in input
// order.
type Resolver struct {
	Index       core.CardIndex
	Locator     core.ImageLocator
	Placeholder core.ImageFile
	Policy      DisambiguationPolicy
	Logger      core.Logger

	// Workers bounds concurrent index queries; 0 or 1 is strictly sequential.
	Workers int

	Clock func() time.Time
}

type logLevel int

const (
	levelInfo logLevel = iota
	levelWarn
)

type logEntry struct {
	level  logLevel
	msg    string
	fields []zap.Field
}

type recordLog []logEntry

func (l *recordLog) info(msg string, fields ...zap.Field) {
	*l = append(*l, logEntry{level: levelInfo, msg: msg, fields: fields})
}

func (l *recordLog) warn(msg string, fields ...zap.Field) {
	*l = append(*l, logEntry{level: levelWarn, msg: msg, fields: fields})
}

// Resolve returns a new slice holding the resolved copy of every artwork. The
// input is left untouched. Every returned artwork has ReplacementImageFile set.
func (r *Resolver) Resolve(ctx context.Context, artworks []core.Artwork) []core.Artwork {
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := r.now()
	total := len(artworks)
	resolved := make([]core.Artwork, total)

	if r.Workers > 1 && total > 1 {
		r.resolveConcurrent(ctx, artworks, resolved)
	} else {
		for i := range artworks {
			var entries recordLog
			resolved[i] = r.resolveOne(ctx, artworks[i], &entries)
			r.flush(entries, i+1, total, resolved[i])
		}
	}

	elapsed := r.now().Sub(startedAt)
	logger(r.Logger).Info(
		fmt.Sprintf("Processed %d in %s", total, formatSeconds(elapsed)),
		zap.Int("count", total),
		zap.Duration("elapsed", elapsed),
	)
	return resolved
}

func (r *Resolver) resolveConcurrent(ctx context.Context, artworks, resolved []core.Artwork) {
	total := len(artworks)
	workers := r.Workers
	if workers > total {
		workers = total
	}

	type completion struct {
		index   int
		entries recordLog
	}

	jobs := make(chan int)
	completed := make(chan completion, total)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				var entries recordLog
				resolved[i] = r.resolveOne(ctx, artworks[i], &entries)
				completed <- completion{index: i, entries: entries}
			}
		}()
	}

	go func() {
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
		close(completed)
	}()

	pending := make(map[int]recordLog, workers)
	done := make([]bool, total)
	next := 0
	for c := range completed {
		pending[c.index] = c.entries
		done[c.index] = true
		for next < total && done[next] {
			r.flush(pending[next], next+1, total, resolved[next])
			delete(pending, next)
			next++
		}
	}

	// Records never dispatched because ctx was cancelled still get the fallback.
	for ; next < total; next++ {
		var entries recordLog
		resolved[next] = r.resolveOne(ctx, artworks[next], &entries)
		r.flush(entries, next+1, total, resolved[next])
	}
}

func (r *Resolver) resolveOne(ctx context.Context, artwork core.Artwork, log *recordLog) core.Artwork {
	out := artwork
	out.Candidates = 0
	out.IndexError = ""
	out.ReplacementMissing = false
	name := out.GameImageMonsterName

	candidates, err := r.search(ctx, name)
	if err != nil {
		out.IndexError = err.Error()
		log.warn(fmt.Sprintf("Index error for %s", name),
			zap.String("card", name),
			zap.String("kind", string(core.IndexErrorKindOf(err))),
			zap.Error(err))
		candidates = nil
	}
	out.Candidates = len(candidates)

	switch len(candidates) {
	case 0:
		return r.noMatch(out, log)
	case 1:
		return r.accept(ctx, out, candidates[0], core.StatusMatched, log)
	default:
		pick := r.policy().Pick(name, candidates)
		out = r.accept(ctx, out, pick, core.StatusAmbiguous, log)
		log.info(fmt.Sprintf("%d matching cards found for %s picked: %s", len(candidates), name, pickLabel(out)),
			zap.String("card", name),
			zap.Int("candidates", len(candidates)),
			zap.String("picked", pick.Name),
			zap.String("policy", r.policy().Name()))
		return out
	}
}

func (r *Resolver) search(ctx context.Context, name string) (cards []core.Card, err error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewIndexError(core.IndexUnavailable, "search", name, err)
	}
	if r.Index == nil {
		return nil, core.NewIndexError(core.IndexUnavailable, "search", name, errors.New("no card index configured"))
	}
	defer func() {
		if rec := recover(); rec != nil {
			cards = nil
			err = core.NewIndexError(core.IndexQuery, "search", name, fmt.Errorf("panic: %v", rec))
		}
	}()
	return r.Index.SearchCards(ctx, name)
}

func (r *Resolver) accept(ctx context.Context, out core.Artwork, candidate core.Card, status core.MatchStatus, log *recordLog) core.Artwork {
	out.ReplacementImageMonsterName = candidate.Name
	out.IsMatched = true
	out.Status = status

	file, err := r.findReplacement(ctx, candidate, out.ReplacementImagesDir)
	if err != nil {
		log.warn(fmt.Sprintf("Replacement image not found for %s - picking the error image", candidate.Name),
			zap.String("card", out.GameImageMonsterName),
			zap.String("candidate", candidate.Name),
			zap.String("dir", out.ReplacementImagesDir),
			zap.Error(err))
		out.ReplacementImageFile = r.Placeholder
		out.ReplacementMissing = true
		return out
	}
	out.ReplacementImageFile = file
	return out
}

func (r *Resolver) findReplacement(ctx context.Context, candidate core.Card, dir string) (core.ImageFile, error) {
	if r.Locator == nil {
		return core.ImageFile{}, core.ErrImageNotFound
	}
	return safeFind(ctx, r.Locator, candidate, dir)
}

func (r *Resolver) noMatch(out core.Artwork, log *recordLog) core.Artwork {
	out.ReplacementImageMonsterName = out.GameImageMonsterName
	out.ReplacementImageFile = r.Placeholder
	out.IsMatched = false
	out.Status = core.StatusUnmatched
	log.info(fmt.Sprintf("No match was found for %s - picking the error image", out.GameImageMonsterName),
		zap.String("card", out.GameImageMonsterName))
	return out
}

func (r *Resolver) flush(entries recordLog, n, total int, artwork core.Artwork) {
	l := logger(r.Logger)
	for _, e := range entries {
		switch e.level {
		case levelWarn:
			l.Warn(e.msg, e.fields...)
		default:
			l.Info(e.msg, e.fields...)
		}
	}
	l.Info(fmt.Sprintf("%d of %d processed - %s", n, total, artwork.GameImageMonsterName),
		zap.Int("processed", n),
		zap.Int("total", total),
		zap.String("status", string(artwork.Status)))
}

func (r *Resolver) policy() DisambiguationPolicy {
	if r.Policy == nil {
		return FirstCandidate{}
	}
	return r.Policy
}

func (r *Resolver) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

func pickLabel(a core.Artwork) string {
	if name := a.ReplacementImageFile.FileName(); name != "" {
		return name
	}
	return a.ReplacementImageMonsterName
}
