package convert

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"uniconverter/internal/archive"
	"uniconverter/internal/artifacts"
	"uniconverter/internal/document"
	"uniconverter/internal/failure"
	"uniconverter/internal/formats"
	"uniconverter/internal/logging"
	"uniconverter/internal/metrics"
	"uniconverter/internal/workers"
)

// scratch tracks intermediates created during one request so they are
// removed whatever the outcome.
type scratch struct {
	mu    sync.Mutex
	store *artifacts.Store
	owned map[string]artifacts.Artifact
}

func newScratch(store *artifacts.Store) *scratch {
	return &scratch{store: store, owned: make(map[string]artifacts.Artifact)}
}

func (s *scratch) add(a artifacts.Artifact) {
	s.mu.Lock()
	s.owned[a.ID] = a
	s.mu.Unlock()
}

// release deletes every intermediate except keep.
func (s *scratch) release(ctx context.Context, keep string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.owned {
		if id == keep {
			continue
		}
		if err := s.store.Delete(ctx, a); err != nil {
			logging.Warn("failed to remove intermediate %s: %v", id, err)
		}
	}
	s.owned = nil
}

// fanOut rasterizes every selected page of a document and converts each
// page into dst.
func (d *Dispatcher) fanOut(ctx context.Context, req Request, src, dst formats.Descriptor) (artifacts.Artifact, error) {
	tmp := newScratch(d.store)
	var result artifacts.Artifact
	// Cleanup must outlive a canceled request.
	defer func() { tmp.release(context.WithoutCancel(ctx), result.ID) }()

	doc := req.Source
	if src.Ext != "pdf" {
		pdf, err := d.Convert(ctx, Request{Source: req.Source, Target: "pdf"})
		if err != nil {
			return artifacts.Artifact{}, err
		}
		tmp.add(pdf)
		doc = pdf
	}

	renderer, err := lookup[DocumentBackend](d.registry, document.BackendName)
	if err != nil {
		return artifacts.Artifact{}, err
	}

	type unit struct {
		page int
		png  artifacts.Artifact
	}
	var units []unit
	_, err = renderer.RenderPages(ctx, doc.Path, req.Params.Pages, func(page int, img image.Image) error {
		a, err := d.store.Produce(ctx, "png", pageName(page, "png"), func(path string) error {
			return imaging.Save(img, path)
		})
		if err != nil {
			return err
		}
		tmp.add(a)
		units = append(units, unit{page: page, png: a})
		return nil
	})
	if err != nil {
		return artifacts.Artifact{}, err
	}

	metrics.FanOutUnits.Observe(float64(len(units)))
	if len(units) == 0 {
		return artifacts.Artifact{}, failure.New(failure.KindEmptyDocument, "%s has no pages", req.Source.Name)
	}

	pageParams := req.Params
	pageParams.Pages = nil

	converted := make([]artifacts.Artifact, len(units))
	g, gctx := errgroup.WithContext(ctx)
	limit := d.workers
	if limit <= 0 {
		limit = workers.ForPages(len(units))
	}
	g.SetLimit(limit)
	for i, u := range units {
		g.Go(func() error {
			if err := d.gate.Wait(gctx); err != nil {
				return err
			}
			out, err := d.Convert(gctx, Request{Source: u.png, Target: dst.Ext, Params: pageParams})
			if err != nil {
				return fmt.Errorf("page %d: %w", u.page, err)
			}
			tmp.add(out)
			converted[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return artifacts.Artifact{}, err
	}

	if len(converted) == 1 {
		result = converted[0]
		result.Name = RenameExt(req.Source.Name, dst.Ext)
		return result, nil
	}

	files := make([]archive.File, len(converted))
	for i, a := range converted {
		files[i] = archive.File{Name: pageName(units[i].page, dst.Ext), Path: a.Path}
	}
	bundle, err := d.store.Produce(ctx, "zip", RenameExt(req.Source.Name, "zip"), func(path string) error {
		return archive.Pack(ctx, path, files)
	})
	if err != nil {
		return artifacts.Artifact{}, failure.Ensure(err, failure.KindBackendExecutionFailed, "bundle %d pages", len(files))
	}
	result = bundle
	return result, nil
}

func pageName(page int, ext string) string {
	return fmt.Sprintf("page-%03d.%s", page, ext)
}
