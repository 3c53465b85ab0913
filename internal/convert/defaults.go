package convert

import (
	"uniconverter/internal/archive"
	"uniconverter/internal/document"
	"uniconverter/internal/formats"
	"uniconverter/internal/metadata"
	"uniconverter/internal/raster"
	"uniconverter/internal/transcoder"
	"uniconverter/internal/vector"
)

// BackendOptions configures the stock backends.
type BackendOptions struct {
	Raster     raster.Options
	Vector     vector.Options
	Transcoder transcoder.Options
	// DPI is the page rasterization resolution; zero uses the default.
	DPI float64
	// ExifTool is the exiftool binary; empty resolves it from PATH.
	ExifTool string
}

// NewDefaultRegistry registers every stock backend. Backends whose tools are
// missing are still registered and report themselves unavailable. The
// transcoder is returned as well since it also serves as the MP4 prober and
// owns child processes that must be cleaned up on shutdown.
func NewDefaultRegistry(catalog *formats.Catalog, opts BackendOptions) (*Registry, *transcoder.Transcoder) {
	trans := transcoder.New(catalog, opts.Transcoder)

	r := NewRegistry()
	r.Register(raster.New(catalog, opts.Raster))
	r.Register(raster.VipsBackend{})
	r.Register(vector.New(opts.Vector))
	r.Register(trans)
	r.Register(document.New(opts.DPI))
	r.Register(archive.New())
	r.Register(metadata.NewExifTool(opts.ExifTool))
	return r, trans
}
