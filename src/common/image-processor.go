package common

// Image processor for icon generation
//
// Responsibilities:
// 1. Decode the source image (png, jpeg, gif, bmp, tiff, webp)
// 2. Render one square copy per icon size, largest first
// 3. Pack all renders into a single .ico container
// 4. Replace the output file atomically so a failed run never leaves a truncated icon

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"
	ico "github.com/sergeymakinen/go-ico"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxIconSize is the largest frame the ICO directory can describe
const MaxIconSize = 256

var defaultIconSizes = []int{256, 128, 64, 48, 32, 16}

// DefaultIconSizes returns the standard Windows icon sizes, largest first
func DefaultIconSizes() []int {
	sizes := make([]int, len(defaultIconSizes))
	copy(sizes, defaultIconSizes)
	return sizes
}

// ValidateSizes checks that sizes are within 1..256, strictly descending and unique
func ValidateSizes(sizes []int) error {
	if len(sizes) == 0 {
		return fmt.Errorf("at least one icon size is required")
	}
	for i, size := range sizes {
		if size < 1 || size > MaxIconSize {
			return fmt.Errorf("icon size %d out of range 1..%d", size, MaxIconSize)
		}
		if i > 0 && size >= sizes[i-1] {
			return fmt.Errorf("icon sizes must be strictly descending: %d follows %d", size, sizes[i-1])
		}
	}
	return nil
}

// Filter names a resampling kernel
type Filter string

const (
	FilterCatmullRom     Filter = "catmullrom"
	FilterBiLinear       Filter = "bilinear"
	FilterApproxBiLinear Filter = "approxbilinear"
	FilterNearest        Filter = "nearest"
	FilterLanczos3       Filter = "lanczos3"
)

// DefaultFilter is used when no filter is configured
const DefaultFilter = FilterCatmullRom

// ParseFilter maps a config value to a Filter. Empty selects DefaultFilter.
func ParseFilter(name string) (Filter, error) {
	switch f := Filter(name); f {
	case "":
		return DefaultFilter, nil
	case FilterCatmullRom, FilterBiLinear, FilterApproxBiLinear, FilterNearest, FilterLanczos3:
		return f, nil
	default:
		return "", fmt.Errorf("unknown resampling filter: %s", name)
	}
}

func (f Filter) scaler() xdraw.Scaler {
	switch f {
	case FilterBiLinear:
		return xdraw.BiLinear
	case FilterApproxBiLinear:
		return xdraw.ApproxBiLinear
	case FilterNearest:
		return xdraw.NearestNeighbor
	default:
		return xdraw.CatmullRom
	}
}

// ConversionError is returned for every failure of a conversion
type ConversionError struct {
	Op   string // open, decode, render, encode, write
	Path string
	Err  error
}

func (e *ConversionError) Error() string {
	var pathErr *fs.PathError
	if errors.As(e.Err, &pathErr) && pathErr.Path == e.Path {
		return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Converter turns a raster image into a multi-size .ico file
type Converter struct {
	sizes  []int
	filter Filter
}

// NewConverter creates a converter for the given sizes and filter name.
// Nil sizes select DefaultIconSizes.
func NewConverter(sizes []int, filter string) (*Converter, error) {
	if sizes == nil {
		sizes = DefaultIconSizes()
	}
	if err := ValidateSizes(sizes); err != nil {
		return nil, err
	}

	f, err := ParseFilter(filter)
	if err != nil {
		return nil, err
	}

	own := make([]int, len(sizes))
	copy(own, sizes)

	return &Converter{sizes: own, filter: f}, nil
}

// Sizes returns the icon sizes written by this converter
func (c *Converter) Sizes() []int {
	sizes := make([]int, len(c.sizes))
	copy(sizes, c.sizes)
	return sizes
}

// Filter returns the resampling filter in use
func (c *Converter) Filter() Filter {
	return c.filter
}

// Convert converts inputPath to an .ico at outputPath with the standard sizes
func Convert(inputPath, outputPath string) error {
	c, err := NewConverter(nil, "")
	if err != nil {
		return err
	}
	return c.Convert(inputPath, outputPath)
}

// Convert decodes inputPath, renders every size and replaces outputPath with the icon.
// On failure outputPath is left as it was.
func (c *Converter) Convert(inputPath, outputPath string) error {
	img, _, err := DecodeImage(inputPath)
	if err != nil {
		return err
	}

	frames, err := c.Render(img)
	if err != nil {
		return &ConversionError{Op: "render", Path: inputPath, Err: err}
	}

	var buf bytes.Buffer
	if err := ico.EncodeAll(&buf, frames); err != nil {
		return &ConversionError{Op: "encode", Path: outputPath, Err: err}
	}

	if err := writeFileAtomic(outputPath, buf.Bytes(), 0644); err != nil {
		return &ConversionError{Op: "write", Path: outputPath, Err: err}
	}

	return nil
}

// DecodeImage reads and decodes an image file, returning the format name
func DecodeImage(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", &ConversionError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", &ConversionError{Op: "decode", Path: path, Err: err}
	}

	return img, format, nil
}

// Render returns one square frame per configured size, in order
func (c *Converter) Render(img image.Image) ([]image.Image, error) {
	return Render(img, c.sizes, c.filter)
}

// Render scales img to each size. Non-square sources keep their aspect ratio
// and are centered on a transparent canvas.
func Render(img image.Image, sizes []int, filter Filter) ([]image.Image, error) {
	if err := ValidateSizes(sizes); err != nil {
		return nil, err
	}
	if img.Bounds().Empty() {
		return nil, errors.New("source image is empty")
	}

	frames := make([]image.Image, 0, len(sizes))
	for _, size := range sizes {
		frames = append(frames, renderFrame(img, size, filter))
	}
	return frames, nil
}

func renderFrame(src image.Image, size int, filter Filter) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	dr := fitRect(src.Bounds(), size)

	if filter == FilterLanczos3 {
		scaled := resize.Resize(uint(dr.Dx()), uint(dr.Dy()), src, resize.Lanczos3)
		xdraw.Draw(dst, dr, scaled, scaled.Bounds().Min, xdraw.Over)
		return dst
	}

	filter.scaler().Scale(dst, dr, src, src.Bounds(), xdraw.Over, nil)
	return dst
}

// fitRect returns the largest rectangle with the aspect ratio of b that fits
// centered in a size×size square
func fitRect(b image.Rectangle, size int) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	if w == h {
		return image.Rect(0, 0, size, size)
	}

	nw, nh := size, size
	if w > h {
		nh = max(1, (h*size+w/2)/w)
	} else {
		nw = max(1, (w*size+h/2)/h)
	}

	offX := (size - nw) / 2
	offY := (size - nh) / 2
	return image.Rect(offX, offY, offX+nw, offY+nh)
}

// ReadIcon decodes every frame of an .ico file
func ReadIcon(path string) ([]image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open icon: %w", err)
	}
	defer f.Close()

	frames, err := ico.DecodeAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode icon: %w", err)
	}
	return frames, nil
}

// writeFileAtomic writes data to a temp file next to path and renames it into place
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
