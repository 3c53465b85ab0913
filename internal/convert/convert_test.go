package convert

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/zip"

	"uniconverter/internal/archive"
	"uniconverter/internal/artifacts"
	"uniconverter/internal/document"
	"uniconverter/internal/failure"
	"uniconverter/internal/formats"
	"uniconverter/internal/metadata"
	"uniconverter/internal/raster"
	"uniconverter/internal/transcoder"
	"uniconverter/internal/vector"
)

type fakeDocument struct {
	pages int
	calls int
}

func (f *fakeDocument) Name() string    { return document.BackendName }
func (f *fakeDocument) Available() bool { return true }

func (f *fakeDocument) Convert(ctx context.Context, src, dst string) error {
	return os.WriteFile(dst, []byte("converted"), 0o644)
}

func (f *fakeDocument) RenderPages(ctx context.Context, src string, selection []int, fn func(int, image.Image) error) (int, error) {
	f.calls++
	pages := selection
	if len(pages) == 0 {
		for p := 1; p <= f.pages; p++ {
			pages = append(pages, p)
		}
	}
	for _, p := range pages {
		img := image.NewNRGBA(image.Rect(0, 0, 20, 10))
		for x := 0; x < 20; x++ {
			for y := 0; y < 10; y++ {
				img.Set(x, y, color.NRGBA{uint8(p * 40), 100, 200, 255})
			}
		}
		if err := fn(p, img); err != nil {
			return f.pages, err
		}
	}
	return f.pages, nil
}

type fakeMedia struct {
	available bool
	err       error
}

func (f *fakeMedia) Name() string    { return transcoder.BackendName }
func (f *fakeMedia) Available() bool { return f.available }

func (f *fakeMedia) Convert(ctx context.Context, src, dst string, p transcoder.Params) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dst, []byte("media"), 0o644)
}

type fakeStripper struct {
	stripped []string
}

func (f *fakeStripper) Name() string    { return metadata.BackendName }
func (f *fakeStripper) Available() bool { return true }

func (f *fakeStripper) Read(ctx context.Context, path string) (map[string]any, error) {
	return map[string]any{}, nil
}

func (f *fakeStripper) StripAll(ctx context.Context, path string) error {
	f.stripped = append(f.stripped, path)
	return nil
}

func newTestDispatcher(t *testing.T, backends ...Backend) *Dispatcher {
	t.Helper()
	catalog := formats.Default()
	store, err := artifacts.NewStore(t.TempDir(), catalog, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	registry := NewRegistry()
	registry.Register(raster.New(catalog, raster.Options{}))
	for _, b := range backends {
		registry.Register(b)
	}
	return NewDispatcher(catalog, registry, store, Options{Workers: 2})
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func save(t *testing.T, d *Dispatcher, data []byte, ext, name string) artifacts.Artifact {
	t.Helper()
	a, err := d.Store().Save(context.Background(), data, ext, name)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	return a
}

func storeFiles(t *testing.T, d *Dispatcher) []string {
	t.Helper()
	entries, err := os.ReadDir(d.Store().Dir())
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestConvertPassThrough(t *testing.T) {
	d := newTestDispatcher(t)
	data := pngBytes(t)
	src := save(t, d, data, "png", "logo.png")

	for _, target := range []string{"png", ".PNG"} {
		out, err := d.Convert(context.Background(), Request{Source: src, Target: target})
		if err != nil {
			t.Fatalf("Convert(%q) error = %v", target, err)
		}
		if out.ID != src.ID {
			t.Errorf("Convert(%q) returned %s, want source %s", target, out.ID, src.ID)
		}
		got, err := d.Store().Read(out)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Error("pass-through changed the bytes")
		}
	}
}

func TestConvertUnsupported(t *testing.T) {
	d := newTestDispatcher(t, &fakeMedia{available: true}, &fakeDocument{pages: 1})
	png := save(t, d, pngBytes(t), "png", "a.png")
	svg := save(t, d, []byte("<svg/>"), "svg", "a.svg")
	unknown := save(t, d, []byte("?"), "xyz", "a.xyz")

	tests := []struct {
		name   string
		src    artifacts.Artifact
		target string
	}{
		{"image to audio", png, "mp3"},
		{"unknown target", png, "xyz"},
		{"unknown source", unknown, "png"},
		{"svg is not decodable", svg, "png"},
		{"unknown identity", unknown, "xyz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Convert(context.Background(), Request{Source: tt.src, Target: tt.target})
			if !errors.Is(err, failure.ErrUnsupportedConversion) {
				t.Errorf("Convert() error = %v, want unsupported_conversion", err)
			}
		})
	}
}

func TestConvertBackendUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		backends []Backend
	}{
		{"not registered", nil},
		{"registered but missing", []Backend{&fakeMedia{available: false}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(t, tt.backends...)
			src := save(t, d, []byte("ID3"), "mp3", "song.mp3")

			_, err := d.Convert(context.Background(), Request{Source: src, Target: "wav"})
			if !errors.Is(err, failure.ErrBackendUnavailable) {
				t.Fatalf("Convert() error = %v, want backend_unavailable", err)
			}
			if n := len(storeFiles(t, d)); n != 1 {
				t.Errorf("store holds %d files, want only the source", n)
			}
		})
	}
}

func TestConvertBackendFailureIsTyped(t *testing.T) {
	d := newTestDispatcher(t, &fakeMedia{available: true, err: errors.New("exit status 1")})
	src := save(t, d, []byte("ID3"), "mp3", "song.mp3")

	_, err := d.Convert(context.Background(), Request{Source: src, Target: "flac"})
	if !errors.Is(err, failure.ErrBackendExecutionFailed) {
		t.Fatalf("Convert() error = %v, want backend_execution_failed", err)
	}
	if n := len(storeFiles(t, d)); n != 1 {
		t.Errorf("store holds %d files after failure, want 1", n)
	}
}

func TestConvertRaster(t *testing.T) {
	d := newTestDispatcher(t)
	data := pngBytes(t)
	src := save(t, d, data, "png", "photo.png")

	out, err := d.Convert(context.Background(), Request{Source: src, Target: "jpg", Params: Params{Quality: 80}})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if out.Ext != "jpg" || out.Category != formats.CategoryImage {
		t.Errorf("output = %+v, want a jpg image", out)
	}
	if out.Name != "photo.jpg" {
		t.Errorf("output name = %q, want photo.jpg", out.Name)
	}

	got, err := d.Store().Read(out)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if _, format, err := image.Decode(bytes.NewReader(got)); err != nil || format != "jpeg" {
		t.Errorf("output decodes as %q, %v; want jpeg", format, err)
	}

	orig, _ := d.Store().Read(src)
	if !bytes.Equal(orig, data) {
		t.Error("source artifact was modified")
	}
}

func TestFanOutBundlesPages(t *testing.T) {
	doc := &fakeDocument{pages: 3}
	d := newTestDispatcher(t, doc)
	src := save(t, d, []byte("%PDF-1.4"), "pdf", "report.pdf")

	out, err := d.Convert(context.Background(), Request{Source: src, Target: "jpg"})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if out.Ext != "zip" {
		t.Fatalf("output ext = %q, want zip", out.Ext)
	}
	if out.Name != "report.zip" {
		t.Errorf("output name = %q, want report.zip", out.Name)
	}

	zr, err := zip.OpenReader(out.Path)
	if err != nil {
		t.Fatalf("zip.OpenReader() error = %v", err)
	}
	defer zr.Close()

	want := []string{"page-001.jpg", "page-002.jpg", "page-003.jpg"}
	if len(zr.File) != len(want) {
		t.Fatalf("zip holds %d entries, want %d", len(zr.File), len(want))
	}
	for i, f := range zr.File {
		if f.Name != want[i] {
			t.Errorf("entry %d = %q, want %q", i, f.Name, want[i])
		}
	}

	if files := storeFiles(t, d); len(files) != 2 {
		t.Errorf("store holds %v, want source and bundle only", files)
	}
}

type countingGate struct {
	waits atomic.Int32
	err   error
}

func (g *countingGate) Wait(ctx context.Context) error {
	g.waits.Add(1)
	return g.err
}

func TestFanOutWaitsOnGate(t *testing.T) {
	tests := []struct {
		name    string
		gateErr error
	}{
		{"open", nil},
		{"request ended while waiting", context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(t, &fakeDocument{pages: 3})
			gate := &countingGate{err: tt.gateErr}
			d.gate = gate
			src := save(t, d, []byte("%PDF-1.4"), "pdf", "report.pdf")

			_, err := d.Convert(context.Background(), Request{Source: src, Target: "jpg"})
			if !errors.Is(err, tt.gateErr) {
				t.Fatalf("Convert() error = %v, want %v", err, tt.gateErr)
			}
			if tt.gateErr == nil && gate.waits.Load() != 3 {
				t.Errorf("gate waited %d times, want once per page", gate.waits.Load())
			}
			if tt.gateErr != nil {
				if files := storeFiles(t, d); len(files) != 1 {
					t.Errorf("store holds %v, want only the source", files)
				}
			}
		})
	}
}

func TestFanOutSinglePage(t *testing.T) {
	d := newTestDispatcher(t, &fakeDocument{pages: 4})
	src := save(t, d, []byte("%PDF-1.4"), "pdf", "report.pdf")

	out, err := d.Convert(context.Background(), Request{Source: src, Target: "jpg", Params: Params{Pages: []int{2}}})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if out.Ext != "jpg" {
		t.Errorf("output ext = %q, want jpg", out.Ext)
	}
	if _, err := os.Stat(out.Path); err != nil {
		t.Errorf("output missing: %v", err)
	}
	if files := storeFiles(t, d); len(files) != 2 {
		t.Errorf("store holds %v, want source and page", files)
	}
}

func TestFanOutPNGPageSurvivesCleanup(t *testing.T) {
	d := newTestDispatcher(t, &fakeDocument{pages: 1})
	src := save(t, d, []byte("%PDF-1.4"), "pdf", "one.pdf")

	out, err := d.Convert(context.Background(), Request{Source: src, Target: "png"})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if _, err := os.Stat(out.Path); err != nil {
		t.Errorf("output removed with the intermediates: %v", err)
	}
}

func TestFanOutEmptyDocument(t *testing.T) {
	d := newTestDispatcher(t, &fakeDocument{pages: 0})
	src := save(t, d, []byte("%PDF-1.4"), "pdf", "blank.pdf")

	_, err := d.Convert(context.Background(), Request{Source: src, Target: "png"})
	if !errors.Is(err, failure.ErrEmptyDocument) {
		t.Fatalf("Convert() error = %v, want empty_document", err)
	}
	if files := storeFiles(t, d); len(files) != 1 {
		t.Errorf("store holds %v, want only the source", files)
	}
}

func TestFanOutTextChainsThroughPDF(t *testing.T) {
	doc := &fakeDocument{pages: 2}
	d := newTestDispatcher(t, doc)
	src := save(t, d, []byte("hello"), "txt", "notes.txt")

	out, err := d.Convert(context.Background(), Request{Source: src, Target: "gif"})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if out.Ext != "zip" {
		t.Errorf("output ext = %q, want zip", out.Ext)
	}
	if doc.calls != 1 {
		t.Errorf("RenderPages called %d times, want 1", doc.calls)
	}
	if files := storeFiles(t, d); len(files) != 2 {
		t.Errorf("store holds %v, want source and bundle", files)
	}
}

func TestStripMetadata(t *testing.T) {
	stripper := &fakeStripper{}
	d := newTestDispatcher(t, stripper)
	src := save(t, d, pngBytes(t), "png", "photo.png")

	out, err := d.Convert(context.Background(), Request{Source: src, Target: "jpg", Params: Params{StripMetadata: true}})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if len(stripper.stripped) != 1 || stripper.stripped[0] != out.Path {
		t.Errorf("stripped %v, want [%s]", stripper.stripped, out.Path)
	}

	if _, err := d.Convert(context.Background(), Request{Source: src, Target: "png", Params: Params{StripMetadata: true}}); err != nil {
		t.Fatalf("pass-through error = %v", err)
	}
	if len(stripper.stripped) != 1 {
		t.Error("pass-through must not modify the source")
	}
}

func TestEveryConvertiblePairHasRoute(t *testing.T) {
	catalog := formats.Default()
	for _, p := range catalog.ConvertiblePairs() {
		src, _ := catalog.Lookup(p.Src)
		dst, _ := catalog.Lookup(p.Dst)
		r, ok := routeFor(src, dst)
		if !ok {
			t.Errorf("no route for %s -> %s", p.Src, p.Dst)
			continue
		}
		if r.kind == oneToOne && r.run == nil {
			t.Errorf("route %s for %s -> %s has no runner", r.name, p.Src, p.Dst)
		}
	}
}

func TestBackendsFor(t *testing.T) {
	catalog := formats.Default()
	lookup := func(ext string) formats.Descriptor {
		d, _ := catalog.Lookup(ext)
		return d
	}

	tests := []struct {
		src, dst string
		want     []string
	}{
		{"png", "jpg", []string{raster.BackendName}},
		{"png", "webp", []string{raster.BackendName, raster.VipsBackendName}},
		{"heic", "png", []string{raster.BackendName, raster.VipsBackendName}},
		{"png", "svg", []string{"vector"}},
		{"pdf", "png", []string{document.BackendName, raster.BackendName}},
		{"pdf", "avif", []string{document.BackendName, raster.BackendName, raster.VipsBackendName}},
		{"mp3", "mp4", []string{transcoder.BackendName}},
	}

	for _, tt := range tests {
		t.Run(tt.src+"->"+tt.dst, func(t *testing.T) {
			r, ok := routeFor(lookup(tt.src), lookup(tt.dst))
			if !ok {
				t.Fatal("no route")
			}
			got := backendsFor(r, lookup(tt.src), lookup(tt.dst))
			if len(got) != len(tt.want) {
				t.Fatalf("backendsFor() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("backendsFor() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestRenameExt(t *testing.T) {
	tests := []struct {
		name, ext, want string
	}{
		{"photo.png", "jpg", "photo.jpg"},
		{"backup.tar.gz", "zip", "backup.zip"},
		{"dir/clip.MOV", "mp4", "clip.mp4"},
		{"noext", "pdf", "noext.pdf"},
		{"", "pdf", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenameExt(tt.name, tt.ext); got != tt.want {
				t.Errorf("RenameExt(%q, %q) = %q, want %q", tt.name, tt.ext, got, tt.want)
			}
		})
	}
}

func TestRegistryStatus(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeMedia{available: false})
	r.Register(&fakeDocument{})

	status := r.Status()
	if status[transcoder.BackendName] {
		t.Error("ffmpeg reported available")
	}
	if !status[document.BackendName] {
		t.Error("document reported unavailable")
	}
	if r.Available("missing") {
		t.Error("unregistered backend reported available")
	}
}

func TestNewDefaultRegistry(t *testing.T) {
	r, trans := NewDefaultRegistry(formats.Default(), BackendOptions{})
	if trans == nil {
		t.Fatal("transcoder not returned")
	}

	status := r.Status()
	for _, name := range []string{raster.BackendName, raster.VipsBackendName, vector.BackendName,
		transcoder.BackendName, document.BackendName, archive.BackendName, metadata.BackendName} {
		if _, ok := status[name]; !ok {
			t.Errorf("backend %q not registered", name)
		}
	}
	for _, name := range []string{raster.BackendName, vector.BackendName, document.BackendName, archive.BackendName} {
		if !status[name] {
			t.Errorf("pure-Go backend %q reports unavailable", name)
		}
	}
}
