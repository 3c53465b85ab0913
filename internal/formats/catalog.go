package formats

import (
	"path/filepath"
	"sort"
	"strings"
)

// Category is the media family a format belongs to.
type Category string

const (
	// CategoryImage represents raster and vector images.
	CategoryImage Category = "image"
	// CategoryAudio represents audio-only streams.
	CategoryAudio Category = "audio"
	// CategoryVideo represents video containers.
	CategoryVideo Category = "video"
	// CategoryDocument represents paginated or plain-text documents.
	CategoryDocument Category = "document"
	// CategoryArchive represents file archives.
	CategoryArchive Category = "archive"
	// CategoryUnknown represents an unrecognized extension.
	CategoryUnknown Category = "unknown"
)

// PixelMode is the pixel representation a raster target requires.
type PixelMode string

const (
	// PixelNone is used for non-raster formats.
	PixelNone PixelMode = ""
	// PixelRGB is full color without alpha.
	PixelRGB PixelMode = "rgb"
	// PixelRGBA is full color with alpha.
	PixelRGBA PixelMode = "rgba"
	// PixelPaletted is a limited palette.
	PixelPaletted PixelMode = "paletted"
	// PixelMono is 1-bit black and white.
	PixelMono PixelMode = "mono"
)

// Descriptor describes one format.
type Descriptor struct {
	Ext       string
	Category  Category
	Decodable bool
	Encodable bool
	PixelMode PixelMode
	MimeType  string
}

// Pair is an ordered (source, target) extension pair.
type Pair struct {
	Src string
	Dst string
}

// Catalog is the immutable extension table.
type Catalog struct {
	formats map[string]Descriptor

	// explicit pairs for categories whose members do not all interconvert
	documentPairs map[Pair]bool
	archivePairs  map[Pair]bool
}

var defaultCatalog = newDefaultCatalog()

// Default returns the shared catalog.
func Default() *Catalog {
	return defaultCatalog
}

func newDefaultCatalog() *Catalog {
	descriptors := []Descriptor{
		// Images
		{"jpg", CategoryImage, true, true, PixelRGB, "image/jpeg"},
		{"jpeg", CategoryImage, true, true, PixelRGB, "image/jpeg"},
		{"png", CategoryImage, true, true, PixelRGBA, "image/png"},
		{"gif", CategoryImage, true, true, PixelPaletted, "image/gif"},
		{"bmp", CategoryImage, true, true, PixelRGB, "image/bmp"},
		{"tiff", CategoryImage, true, true, PixelRGBA, "image/tiff"},
		{"tif", CategoryImage, true, true, PixelRGBA, "image/tiff"},
		{"webp", CategoryImage, true, true, PixelRGBA, "image/webp"},
		{"ico", CategoryImage, true, true, PixelRGBA, "image/x-icon"},
		{"avif", CategoryImage, true, true, PixelRGBA, "image/avif"},
		{"heic", CategoryImage, true, true, PixelRGBA, "image/heic"},
		{"pbm", CategoryImage, true, true, PixelMono, "image/x-portable-bitmap"},
		{"svg", CategoryImage, false, true, PixelNone, "image/svg+xml"},

		// Audio
		{"mp3", CategoryAudio, true, true, PixelNone, "audio/mpeg"},
		{"wav", CategoryAudio, true, true, PixelNone, "audio/wav"},
		{"flac", CategoryAudio, true, true, PixelNone, "audio/flac"},
		{"aac", CategoryAudio, true, true, PixelNone, "audio/aac"},
		{"m4a", CategoryAudio, true, true, PixelNone, "audio/mp4"},
		{"ogg", CategoryAudio, true, true, PixelNone, "audio/ogg"},
		{"opus", CategoryAudio, true, true, PixelNone, "audio/opus"},

		// Video
		{"mp4", CategoryVideo, true, true, PixelNone, "video/mp4"},
		{"mov", CategoryVideo, true, true, PixelNone, "video/quicktime"},
		{"avi", CategoryVideo, true, true, PixelNone, "video/x-msvideo"},
		{"webm", CategoryVideo, true, true, PixelNone, "video/webm"},
		{"mkv", CategoryVideo, true, true, PixelNone, "video/x-matroska"},
		{"m4v", CategoryVideo, true, true, PixelNone, "video/x-m4v"},

		// Documents
		{"pdf", CategoryDocument, true, true, PixelNone, "application/pdf"},
		{"txt", CategoryDocument, true, true, PixelNone, "text/plain"},

		// Archives
		{"zip", CategoryArchive, true, true, PixelNone, "application/zip"},
		{"tar.gz", CategoryArchive, true, true, PixelNone, "application/gzip"},
		{"7z", CategoryArchive, true, false, PixelNone, "application/x-7z-compressed"},
	}

	c := &Catalog{
		formats: make(map[string]Descriptor, len(descriptors)),
		documentPairs: map[Pair]bool{
			{"pdf", "txt"}: true,
			{"txt", "pdf"}: true,
		},
		archivePairs: map[Pair]bool{
			{"zip", "tar.gz"}: true,
			{"tar.gz", "zip"}: true,
			{"7z", "zip"}:     true,
		},
	}
	for _, d := range descriptors {
		c.formats[d.Ext] = d
	}
	return c
}

// Normalize folds case, strips a leading dot and resolves aliases.
func Normalize(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	ext = strings.TrimPrefix(ext, ".")
	if ext == "tgz" {
		return "tar.gz"
	}
	return ext
}

// ExtOf returns the normalized extension of a file path, keeping the
// double extension "tar.gz" intact.
func ExtOf(path string) string {
	lower := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(lower, ".tar.gz") {
		return "tar.gz"
	}
	return Normalize(filepath.Ext(lower))
}

// Lookup returns the descriptor for ext.
func (c *Catalog) Lookup(ext string) (Descriptor, bool) {
	d, ok := c.formats[Normalize(ext)]
	return d, ok
}

// CategoryOf classifies an extension. Unrecognized extensions map to
// CategoryUnknown and must not be treated as any other category.
func (c *Catalog) CategoryOf(ext string) Category {
	if d, ok := c.Lookup(ext); ok {
		return d.Category
	}
	return CategoryUnknown
}

// MimeType returns the MIME type for ext, or application/octet-stream.
func (c *Catalog) MimeType(ext string) string {
	if d, ok := c.Lookup(ext); ok {
		return d.MimeType
	}
	return "application/octet-stream"
}

// Extensions returns the sorted extensions of a category.
func (c *Catalog) Extensions(category Category) []string {
	var exts []string
	for ext, d := range c.formats {
		if d.Category == category {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}

// CanConvert reports whether a route exists from src to dst.
func (c *Catalog) CanConvert(src, dst string) bool {
	from, ok := c.Lookup(src)
	if !ok {
		return false
	}
	to, ok := c.Lookup(dst)
	if !ok {
		return false
	}
	if from.Ext == to.Ext {
		return true
	}

	pair := Pair{from.Ext, to.Ext}
	switch {
	case from.Category == CategoryArchive || to.Category == CategoryArchive:
		return c.archivePairs[pair]
	case from.Category == CategoryDocument && to.Category == CategoryDocument:
		return c.documentPairs[pair]
	}

	if !from.Decodable || !to.Encodable {
		return false
	}

	switch {
	case from.Category == to.Category:
		return true
	case from.Category == CategoryAudio && to.Category == CategoryVideo:
		return true
	case from.Category == CategoryDocument && to.Category == CategoryImage:
		// Pages are rasterized; a vector target has no route.
		return to.PixelMode != PixelNone
	}
	return false
}

// ConvertiblePairs returns every (src, dst) pair with src != dst that
// CanConvert accepts, sorted.
func (c *Catalog) ConvertiblePairs() []Pair {
	var pairs []Pair
	for src := range c.formats {
		for dst := range c.formats {
			if src != dst && c.CanConvert(src, dst) {
				pairs = append(pairs, Pair{src, dst})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Src != pairs[j].Src {
			return pairs[i].Src < pairs[j].Src
		}
		return pairs[i].Dst < pairs[j].Dst
	})
	return pairs
}
