package convert

import (
	"context"
	"image"

	"uniconverter/internal/archive"
	"uniconverter/internal/document"
	"uniconverter/internal/failure"
	"uniconverter/internal/formats"
	"uniconverter/internal/raster"
	"uniconverter/internal/transcoder"
	"uniconverter/internal/vector"
)

// Backend contracts the dispatcher drives. The concrete adapters satisfy
// them; tests substitute fakes.
type (
	// RasterBackend converts between raster image formats.
	RasterBackend interface {
		Backend
		Convert(ctx context.Context, src, dst string, quality int) error
	}

	// FileBackend converts one file into another with no extra parameters.
	FileBackend interface {
		Backend
		Convert(ctx context.Context, src, dst string) error
	}

	// MediaBackend transcodes audio and video.
	MediaBackend interface {
		Backend
		Convert(ctx context.Context, src, dst string, p transcoder.Params) error
	}

	// DocumentBackend converts documents and rasterizes their pages.
	DocumentBackend interface {
		FileBackend
		RenderPages(ctx context.Context, src string, selection []int, fn func(page int, img image.Image) error) (int, error)
	}
)

type routeKind int

const (
	oneToOne routeKind = iota
	fanOut
)

// route is one row of the routing table.
type route struct {
	// name labels conversion metrics.
	name    string
	kind    routeKind
	backend string
	run     func(d *Dispatcher, ctx context.Context, r route, src, dst string, p Params) error
}

type categoryPair struct {
	src, dst formats.Category
}

var routeTable = map[categoryPair]route{
	{formats.CategoryImage, formats.CategoryImage}: {
		name: "raster", kind: oneToOne, backend: raster.BackendName, run: runRaster,
	},
	{formats.CategoryAudio, formats.CategoryAudio}: {
		name: "audio", kind: oneToOne, backend: transcoder.BackendName, run: runMedia,
	},
	{formats.CategoryVideo, formats.CategoryVideo}: {
		name: "video", kind: oneToOne, backend: transcoder.BackendName, run: runMedia,
	},
	{formats.CategoryAudio, formats.CategoryVideo}: {
		name: "audio_to_video", kind: oneToOne, backend: transcoder.BackendName, run: runMedia,
	},
	{formats.CategoryDocument, formats.CategoryDocument}: {
		name: "document", kind: oneToOne, backend: document.BackendName, run: runFile,
	},
	{formats.CategoryDocument, formats.CategoryImage}: {
		name: "document_pages", kind: fanOut, backend: document.BackendName,
	},
	{formats.CategoryArchive, formats.CategoryArchive}: {
		name: "archive", kind: oneToOne, backend: archive.BackendName, run: runFile,
	},
}

// extensionOverrides take precedence over the category table for image
// sources.
var extensionOverrides = map[string]route{
	"svg": {name: "vector", kind: oneToOne, backend: vector.BackendName, run: runFile},
}

// routeFor returns the route converting src into dst.
func routeFor(src, dst formats.Descriptor) (route, bool) {
	if src.Category == formats.CategoryImage {
		if r, ok := extensionOverrides[dst.Ext]; ok {
			return r, true
		}
	}
	r, ok := routeTable[categoryPair{src.Category, dst.Category}]
	return r, ok
}

// backendsFor lists every backend a route needs for this pair.
func backendsFor(r route, src, dst formats.Descriptor) []string {
	names := []string{r.backend}
	switch r.name {
	case "raster":
		if raster.NeedsVips(src.Ext, dst.Ext) {
			names = append(names, raster.VipsBackendName)
		}
	case "document_pages":
		names = append(names, raster.BackendName)
		if raster.NeedsVips("png", dst.Ext) {
			names = append(names, raster.VipsBackendName)
		}
	}
	return names
}

func runRaster(d *Dispatcher, ctx context.Context, r route, src, dst string, p Params) error {
	b, err := lookup[RasterBackend](d.registry, raster.BackendName)
	if err != nil {
		return err
	}
	return b.Convert(ctx, src, dst, p.Quality)
}

func runMedia(d *Dispatcher, ctx context.Context, r route, src, dst string, p Params) error {
	b, err := lookup[MediaBackend](d.registry, transcoder.BackendName)
	if err != nil {
		return err
	}
	return b.Convert(ctx, src, dst, transcoder.Params{
		AudioCodec:   p.AudioCodec,
		VideoCodec:   p.VideoCodec,
		AudioBitrate: p.AudioBitrate,
	})
}

// runFile serves every route whose backend takes no parameters.
func runFile(d *Dispatcher, ctx context.Context, r route, src, dst string, p Params) error {
	b, err := lookup[FileBackend](d.registry, r.backend)
	if err != nil {
		return err
	}
	return b.Convert(ctx, src, dst)
}

// lookup resolves name to a usable backend of type T.
func lookup[T Backend](registry *Registry, name string) (T, error) {
	var zero T
	if !registry.Available(name) {
		return zero, failure.New(failure.KindBackendUnavailable, "%s backend is not available", name)
	}
	b, _ := registry.Lookup(name)
	t, ok := b.(T)
	if !ok {
		return zero, failure.New(failure.KindBackendUnavailable, "%s backend cannot serve this conversion", name)
	}
	return t, nil
}
