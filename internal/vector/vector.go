package vector

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"uniconverter/internal/failure"
	"uniconverter/internal/logging"
	"uniconverter/internal/raster"
)

const (
	// BackendName is the capability name of the vector backend.
	BackendName = "vector"

	// DefaultColors is the default palette size.
	DefaultColors = 8
	// DefaultMinArea is the smallest region, in pixels, that gets a path.
	DefaultMinArea = 16

	maxIterations = 12
	maxSamples    = 1 << 16
)

// Options tunes tracing.
type Options struct {
	Colors  int
	MinArea int
}

func (o Options) withDefaults() Options {
	if o.Colors <= 0 {
		o.Colors = DefaultColors
	}
	if o.MinArea <= 0 {
		o.MinArea = DefaultMinArea
	}
	return o
}

// Converter is the raster-to-SVG backend.
type Converter struct {
	opts Options
}

// New returns a vector converter.
func New(opts Options) *Converter {
	return &Converter{opts: opts.withDefaults()}
}

// Name implements the capability registry contract.
func (c *Converter) Name() string { return BackendName }

// Available is always true.
func (c *Converter) Available() bool { return true }

// Convert traces the raster image at src and writes SVG to dst.
func (c *Converter) Convert(ctx context.Context, src, dst string) error {
	img, err := raster.Decode(src)
	if err != nil {
		return failure.Wrap(failure.KindBackendExecutionFailed, err, "decode %s", filepath.Base(src))
	}

	svg, err := Trace(ctx, img, c.opts)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, svg, 0o644)
}

// Trace converts img to an SVG document.
func Trace(ctx context.Context, img image.Image, opts Options) ([]byte, error) {
	opts = opts.withDefaults()
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	pixels := make([]color.NRGBA, w*h)
	opaque := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			pixels[y*w+x] = c
			opaque[y*w+x] = c.A >= 128
		}
	}

	palette := kmeans(pixels, opaque, opts.Colors)
	labels := assign(pixels, opaque, palette)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>`+"\n")
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n", w, h, w, h)

	paths := 0
	for ci, c := range palette {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, region := range regions(labels, w, h, ci) {
			if region.area < opts.MinArea {
				continue
			}
			outline := traceBoundary(region.contains, region.start, 4*region.area+8)
			fmt.Fprintf(&sb, `<path fill="#%02x%02x%02x" d="%s"/>`+"\n", c.R, c.G, c.B, pathData(outline))
			paths++
		}
	}
	sb.WriteString("</svg>\n")

	logging.Debug("vector: %dx%d traced into %d paths over %d colors", w, h, paths, len(palette))
	return []byte(sb.String()), nil
}

func pathData(points []image.Point) string {
	var sb strings.Builder
	for i, p := range points {
		if i == 0 {
			fmt.Fprintf(&sb, "M%d %d", p.X, p.Y)
			continue
		}
		fmt.Fprintf(&sb, " L%d %d", p.X, p.Y)
	}
	sb.WriteString(" Z")
	return sb.String()
}
