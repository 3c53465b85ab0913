package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"uniconverter/internal/failure"
	"uniconverter/internal/formats"
	"uniconverter/internal/logging"
)

// Converter is the raster backend.
type Converter struct {
	catalog *formats.Catalog
	opts    Options
}

// New returns a raster converter.
func New(catalog *formats.Catalog, opts Options) *Converter {
	return &Converter{catalog: catalog, opts: opts.withDefaults()}
}

// Name implements the capability registry contract.
func (c *Converter) Name() string { return BackendName }

// Available is always true; the pure-Go codecs need no external tools.
func (c *Converter) Available() bool { return true }

// NeedsVips reports whether converting src to dst requires libvips.
func NeedsVips(srcExt, dstExt string) bool {
	switch formats.Normalize(srcExt) {
	case "heic", "avif":
		return true
	}
	switch formats.Normalize(dstExt) {
	case "webp", "heic", "avif":
		return true
	}
	return false
}

// Convert decodes src and writes it to dst in the format named by dst's
// extension. quality overrides the configured quality when positive.
func (c *Converter) Convert(ctx context.Context, src, dst string, quality int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dstExt := formats.ExtOf(dst)
	to, ok := c.catalog.Lookup(dstExt)
	if !ok || to.Category != formats.CategoryImage || to.PixelMode == formats.PixelNone {
		return failure.New(failure.KindUnsupportedConversion, "raster cannot encode %q", dstExt)
	}

	img, err := Decode(src)
	if err != nil {
		return failure.Wrap(failure.KindBackendExecutionFailed, err, "decode %s", filepath.Base(src))
	}

	if quality <= 0 || quality > 100 {
		quality = c.opts.Quality
	}
	data, err := c.Encode(img, to, quality)
	if err != nil {
		return failure.Ensure(err, failure.KindBackendExecutionFailed, "encode %s", to.Ext)
	}

	logging.Debug("raster: %s (%dx%d) -> %s, %d bytes",
		filepath.Base(src), img.Bounds().Dx(), img.Bounds().Dy(), to.Ext, len(data))

	return os.WriteFile(dst, data, 0o644)
}

// Encode normalizes img to the target's pixel mode and encodes it.
func (c *Converter) Encode(img image.Image, to formats.Descriptor, quality int) ([]byte, error) {
	img = Normalize(img, to.PixelMode)

	var buf bytes.Buffer
	switch to.Ext {
	case "ico":
		return EncodeICO(img, c.opts.IconSizes)
	case "pbm":
		if err := EncodePBM(&buf, img); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "webp", "avif", "heic":
		return encodeWithVips(img, to.Ext, quality)
	}

	format, err := imaging.FormatFromExtension(to.Ext)
	if err != nil {
		return nil, fmt.Errorf("no encoder for %s: %w", to.Ext, err)
	}
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Normalize converts img to the pixel representation of mode.
func Normalize(img image.Image, mode formats.PixelMode) image.Image {
	switch mode {
	case formats.PixelRGB:
		return flatten(img)
	case formats.PixelPaletted:
		b := img.Bounds()
		p := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), palette.Plan9)
		draw.FloydSteinberg.Draw(p, p.Bounds(), img, b.Min)
		return p
	case formats.PixelMono:
		return threshold(img)
	default:
		return imaging.Clone(img)
	}
}

// flatten composites img onto an opaque white canvas.
func flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// threshold maps every pixel to black or white by luma, treating
// transparent pixels as white.
func threshold(img image.Image) *image.Gray {
	flat := flatten(img)
	b := flat.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			l := color.GrayModel.Convert(flat.At(x, y)).(color.Gray).Y
			if l >= 128 {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}
