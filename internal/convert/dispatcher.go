package convert

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"uniconverter/internal/artifacts"
	"uniconverter/internal/failure"
	"uniconverter/internal/formats"
	"uniconverter/internal/logging"
	"uniconverter/internal/metadata"
	"uniconverter/internal/metrics"
)

// Params tunes a conversion. Zero values select backend defaults.
type Params struct {
	// Quality is the lossy encoder quality, 1-100.
	Quality int
	// Pages selects 1-based document pages for fan-out. Empty means all.
	Pages []int

	AudioCodec   string
	VideoCodec   string
	AudioBitrate string

	// StripMetadata removes embedded metadata from the output when a
	// metadata backend is registered.
	StripMetadata bool
}

// Request asks for Source to be converted into Target.
type Request struct {
	Source artifacts.Artifact
	Target string
	Params Params
}

// Options configures a Dispatcher.
type Options struct {
	// Workers bounds concurrent page conversions during fan-out.
	// Zero sizes each fan-out from the CPU and page counts.
	Workers int
	// Gate holds page workers back under memory pressure. Nil never waits.
	Gate Gate
}

// Gate blocks callers while the process is short of memory.
type Gate interface {
	Wait(ctx context.Context) error
}

type openGate struct{}

func (openGate) Wait(context.Context) error { return nil }

// Dispatcher routes requests to registered backends.
type Dispatcher struct {
	catalog  *formats.Catalog
	registry *Registry
	store    *artifacts.Store
	workers  int
	gate     Gate
}

// NewDispatcher creates a dispatcher writing its outputs to store.
func NewDispatcher(catalog *formats.Catalog, registry *Registry, store *artifacts.Store, opts Options) *Dispatcher {
	gate := opts.Gate
	if gate == nil {
		gate = openGate{}
	}
	return &Dispatcher{
		catalog:  catalog,
		registry: registry,
		store:    store,
		workers:  opts.Workers,
		gate:     gate,
	}
}

// Catalog returns the catalog the dispatcher routes with.
func (d *Dispatcher) Catalog() *formats.Catalog {
	return d.catalog
}

// Registry returns the backend registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Store returns the artifact store outputs are written to.
func (d *Dispatcher) Store() *artifacts.Store {
	return d.store
}

// Convert converts req.Source into req.Target. The source artifact is never
// modified. When the extensions match the source itself is returned.
//
// A document converted into an image yields one artifact per page: a
// single page is returned directly, several are bundled into a zip.
func (d *Dispatcher) Convert(ctx context.Context, req Request) (artifacts.Artifact, error) {
	start := time.Now()
	routeName := "unrouted"

	out, err := d.convert(ctx, req, &routeName)

	metrics.ConversionsTotal.WithLabelValues(routeName, metrics.StatusLabel(err)).Inc()
	metrics.ConversionDuration.WithLabelValues(routeName).Observe(time.Since(start).Seconds())
	if err != nil {
		logging.Debug("convert %s -> %s failed on route %s: %v", req.Source.Ext, req.Target, routeName, err)
	}
	return out, err
}

func (d *Dispatcher) convert(ctx context.Context, req Request, routeName *string) (artifacts.Artifact, error) {
	srcExt := formats.Normalize(req.Source.Ext)
	if srcExt == "" {
		srcExt = formats.ExtOf(req.Source.Path)
	}
	dstExt := formats.Normalize(req.Target)

	src, ok := d.catalog.Lookup(srcExt)
	if !ok {
		return artifacts.Artifact{}, failure.New(failure.KindUnsupportedConversion, "unknown source format %q", srcExt)
	}
	dst, ok := d.catalog.Lookup(dstExt)
	if !ok {
		return artifacts.Artifact{}, failure.New(failure.KindUnsupportedConversion, "unknown target format %q", dstExt)
	}

	if src.Ext == dst.Ext {
		*routeName = "passthrough"
		return req.Source, nil
	}

	if !d.catalog.CanConvert(src.Ext, dst.Ext) {
		return artifacts.Artifact{}, failure.New(failure.KindUnsupportedConversion, "%s -> %s", src.Ext, dst.Ext)
	}
	r, ok := routeFor(src, dst)
	if !ok {
		return artifacts.Artifact{}, failure.New(failure.KindUnsupportedConversion, "no route for %s -> %s", src.Ext, dst.Ext)
	}
	*routeName = r.name

	for _, name := range backendsFor(r, src, dst) {
		if !d.registry.Available(name) {
			return artifacts.Artifact{}, failure.New(failure.KindBackendUnavailable,
				"%s -> %s requires the %s backend", src.Ext, dst.Ext, name)
		}
	}

	var (
		out artifacts.Artifact
		err error
	)
	switch r.kind {
	case fanOut:
		out, err = d.fanOut(ctx, req, src, dst)
	default:
		out, err = d.store.Produce(ctx, dst.Ext, RenameExt(req.Source.Name, dst.Ext), func(tmp string) error {
			return r.run(d, ctx, r, req.Source.Path, tmp, req.Params)
		})
	}
	if err != nil {
		return artifacts.Artifact{}, failure.Ensure(err, failure.KindBackendExecutionFailed, "%s -> %s", src.Ext, dst.Ext)
	}

	if req.Params.StripMetadata && r.kind == oneToOne {
		if err := d.strip(ctx, out); err != nil {
			_ = d.store.Delete(ctx, out)
			return artifacts.Artifact{}, err
		}
	}
	return out, nil
}

// strip removes metadata from a freshly produced artifact. Without a
// metadata backend the artifact is left as is.
func (d *Dispatcher) strip(ctx context.Context, a artifacts.Artifact) error {
	b, ok := d.registry.Lookup(metadata.BackendName)
	if !ok || !b.Available() {
		logging.Debug("metadata backend not registered, keeping metadata in %s", a.ID)
		return nil
	}
	tool, ok := b.(metadata.Tool)
	if !ok {
		return nil
	}
	if err := tool.StripAll(ctx, a.Path); err != nil {
		return failure.Ensure(err, failure.KindBackendExecutionFailed, "strip metadata from %s", a.ID)
	}
	return nil
}

// RenameExt swaps the extension of a display name. An empty name stays
// empty so the store falls back to the artifact id.
func RenameExt(name, ext string) string {
	if name == "" {
		return ""
	}
	base := filepath.Base(name)
	if strings.HasSuffix(strings.ToLower(base), ".tar.gz") {
		base = base[:len(base)-len(".tar.gz")]
	} else {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if base == "" {
		return ""
	}
	return base + "." + ext
}
