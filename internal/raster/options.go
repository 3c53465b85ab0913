package raster

import "sort"

const (
	// BackendName is the capability name of the pure-Go raster backend.
	BackendName = "raster"

	// DefaultQuality is the encode quality for lossy targets.
	DefaultQuality = 90
)

// DefaultIconSizes are the allowed ICO edges.
var DefaultIconSizes = []int{16, 24, 32, 48, 64, 128, 256}

// Options tunes encoding.
type Options struct {
	// Quality is used for jpg, webp, avif and heic (1-100).
	Quality int
	// IconSizes are the allowed square ICO edges; values outside 1..256 are ignored.
	IconSizes []int
}

func (o Options) withDefaults() Options {
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}

	var sizes []int
	for _, s := range o.IconSizes {
		if s >= 1 && s <= 256 {
			sizes = append(sizes, s)
		}
	}
	if len(sizes) == 0 {
		sizes = append(sizes, DefaultIconSizes...)
	}
	sort.Ints(sizes)
	o.IconSizes = sizes
	return o
}
