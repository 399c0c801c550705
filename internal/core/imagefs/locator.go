package imagefs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/artswap/artswap/internal/core"
)

// DefaultExtensions lists the image types the locator indexes.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}

// DefaultMaxDirs is the number of directory listings kept when MaxDirs is unset.
const DefaultMaxDirs = 16

// ErrTooManyImages aborts a scan that exceeds MaxFiles.
var ErrTooManyImages = errors.New("too many image files")

// Locator finds card images inside a directory tree. Each directory is walked
// once and indexed by passcode and by normalised name; later lookups hit the
// index until Forget drops it. Safe for concurrent use.
type Locator struct {
	Extensions []string
	// MaxDirs bounds the cached listings; the least recently used goes first.
	MaxDirs int
	// MaxFiles fails a scan that finds more images; zero means unlimited.
	MaxFiles int

	mu      sync.Mutex
	indexes *lru.Cache[string, *dirIndex]
}

type dirIndex struct {
	once   sync.Once
	byKey  map[string]string
	err    error
	images int
}

// NewLocator returns a locator indexing the given extensions (DefaultExtensions
// when empty).
func NewLocator(extensions []string) *Locator {
	return &Locator{Extensions: normalizeExtensions(extensions)}
}

// FindImageFile returns the image for card in dir. Passcode file names win over
// name matches. core.ErrImageNotFound is returned when nothing matches.
func (l *Locator) FindImageFile(ctx context.Context, card core.Card, dir string) (core.ImageFile, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return core.ImageFile{}, err
	}

	dir = strings.TrimSpace(dir)
	if dir == "" {
		return core.ImageFile{}, fmt.Errorf("image directory is required")
	}

	idx := l.index(dir)
	if idx.err != nil {
		return core.ImageFile{}, idx.err
	}

	for _, key := range lookupKeys(card) {
		if path, ok := idx.byKey[key]; ok {
			return core.NewImageFile(path), nil
		}
	}

	return core.ImageFile{}, core.ErrImageNotFound
}

// Count returns the number of indexed images in dir.
func (l *Locator) Count(dir string) (int, error) {
	idx := l.index(strings.TrimSpace(dir))
	return idx.images, idx.err
}

// Forget drops the cached index for dir so the next lookup rescans it.
func (l *Locator) Forget(dir string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.indexes != nil {
		l.indexes.Remove(filepath.Clean(strings.TrimSpace(dir)))
	}
}

func (l *Locator) index(dir string) *dirIndex {
	key := filepath.Clean(dir)

	l.mu.Lock()
	if l.indexes == nil {
		size := l.MaxDirs
		if size <= 0 {
			size = DefaultMaxDirs
		}
		// lru.New only fails for a non-positive size.
		l.indexes, _ = lru.New[string, *dirIndex](size)
	}
	idx, ok := l.indexes.Get(key)
	if !ok {
		idx = &dirIndex{}
		l.indexes.Add(key, idx)
	}
	l.mu.Unlock()

	idx.once.Do(func() {
		idx.byKey, idx.images, idx.err = scanDir(key, l.extensions(), l.MaxFiles)
	})
	return idx
}

func (l *Locator) extensions() []string {
	if l == nil || len(l.Extensions) == 0 {
		return DefaultExtensions
	}
	return l.Extensions
}

func scanDir(root string, extensions []string, maxFiles int) (map[string]string, int, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, 0, fmt.Errorf("stat image directory: %w", err)
	}
	if !info.IsDir() {
		return nil, 0, fmt.Errorf("image directory %s is not a directory", root)
	}

	paths := make([]string, 0, 256)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if !hasExtension(d.Name(), extensions) {
			return nil
		}
		if maxFiles > 0 && len(paths) >= maxFiles {
			return fmt.Errorf("%w: %s holds more than %d", ErrTooManyImages, root, maxFiles)
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan image directory: %w", err)
	}

	// First path per key wins, so sort for stable picks across platforms.
	sort.Strings(paths)

	byKey := make(map[string]string, len(paths))
	for _, path := range paths {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		key := NormalizeName(base)
		if key == "" {
			continue
		}
		if _, exists := byKey[key]; !exists {
			byKey[key] = path
		}
	}
	return byKey, len(paths), nil
}

func lookupKeys(card core.Card) []string {
	keys := make([]string, 0, 3)
	for _, raw := range []string{card.Passcode, card.ID, card.Name} {
		key := NormalizeName(raw)
		if key == "" {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

func hasExtension(name string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func normalizeExtensions(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if !strings.HasPrefix(v, ".") {
			v = "." + v
		}
		out = append(out, v)
	}
	return out
}
