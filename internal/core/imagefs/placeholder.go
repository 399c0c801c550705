package imagefs

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/artswap/artswap/internal/core"
)

// PlaceholderFileName is the default name of the generated error image.
const PlaceholderFileName = "artswap-placeholder.png"

// Card proportions (59mm x 86mm).
const (
	cardWidthMM  = 59
	cardHeightMM = 86
)

// DefaultPlaceholderPath returns the placeholder location inside dir, falling
// back to the OS temp directory.
func DefaultPlaceholderPath(dir string) string {
	if strings.TrimSpace(dir) == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, PlaceholderFileName)
}

// EnsurePlaceholder returns the placeholder image at path, rendering it first
// when it does not exist yet. width is the rendered width in pixels.
func EnsurePlaceholder(path string, width int) (core.ImageFile, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return core.ImageFile{}, errors.New("placeholder path is required")
	}

	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return core.ImageFile{}, fmt.Errorf("placeholder path %s is a directory", path)
		}
		return core.NewImageFile(path), nil
	}

	if err := WritePlaceholder(path, width); err != nil {
		return core.ImageFile{}, err
	}
	return core.NewImageFile(path), nil
}

// WritePlaceholder renders the error image to path, overwriting any existing file.
func WritePlaceholder(path string, width int) error {
	if width < 32 {
		width = 32
	}
	if width > 2048 {
		width = 2048
	}
	height := width * cardHeightMM / cardWidthMM

	dir := filepath.Dir(path)
	// #nosec G301 -- cache directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create placeholder directory: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	src := placeholderPattern()
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create placeholder: %w", err)
	}
	defer file.Close() // nolint:errcheck // close error superseded by encode error

	if err := png.Encode(file, dst); err != nil {
		return fmt.Errorf("encode placeholder: %w", err)
	}
	return nil
}

// placeholderPattern is a tiny card face (frame, art box with a cross, text box)
// that gets scaled up to the requested size.
func placeholderPattern() image.Image {
	const w, h = cardWidthMM, cardHeightMM
	frame := color.RGBA{R: 0x3a, G: 0x2a, B: 0x1e, A: 0xff}
	face := color.RGBA{R: 0xc8, G: 0xb0, B: 0x8a, A: 0xff}
	art := color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}
	cross := color.RGBA{R: 0xd0, G: 0x20, B: 0x20, A: 0xff}
	text := color.RGBA{R: 0xe8, G: 0xe0, B: 0xd0, A: 0xff}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: frame}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(3, 3, w-3, h-3), &image.Uniform{C: face}, image.Point{}, draw.Src)

	artBox := image.Rect(7, 15, w-7, 60)
	draw.Draw(img, artBox, &image.Uniform{C: art}, image.Point{}, draw.Src)
	for i := 0; i < artBox.Dy(); i++ {
		x := artBox.Min.X + i*artBox.Dx()/artBox.Dy()
		img.Set(x, artBox.Min.Y+i, cross)
		img.Set(artBox.Max.X-1-(x-artBox.Min.X), artBox.Min.Y+i, cross)
	}

	draw.Draw(img, image.Rect(7, 64, w-7, h-7), &image.Uniform{C: text}, image.Point{}, draw.Src)
	return img
}
