package polyglot

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"uniconverter/internal/artifacts"
	"uniconverter/internal/containers"
	"uniconverter/internal/convert"
	"uniconverter/internal/failure"
	"uniconverter/internal/formats"
	"uniconverter/internal/logging"
	"uniconverter/internal/metrics"
	"uniconverter/internal/workers"
)

// Converter normalizes inputs. *convert.Dispatcher implements it.
type Converter interface {
	Convert(ctx context.Context, req convert.Request) (artifacts.Artifact, error)
}

// Merger builds polyglot artifacts.
type Merger struct {
	conv   Converter
	store  *artifacts.Store
	codecs *containers.Codecs
	gate   convert.Gate
}

// NewMerger returns a merger. codecs may be nil for the default set.
func NewMerger(conv Converter, store *artifacts.Store, codecs *containers.Codecs) *Merger {
	if codecs == nil {
		codecs = containers.New(nil)
	}
	return &Merger{conv: conv, store: store, codecs: codecs}
}

// SetGate makes normalization workers wait on g before converting.
func (m *Merger) SetGate(g convert.Gate) {
	m.gate = g
}

// Merge normalizes inputs, picks a base and embeds the rest into it. The
// inputs are never modified; every intermediate the merge creates is
// deleted before it returns.
func (m *Merger) Merge(ctx context.Context, inputs []artifacts.Artifact) (artifacts.Artifact, error) {
	baseLabel := "none"
	out, err := m.merge(ctx, inputs, &baseLabel)
	metrics.MergesTotal.WithLabelValues(baseLabel, metrics.StatusLabel(err)).Inc()
	if err != nil {
		logging.Debug("merge of %d inputs failed: %v", len(inputs), err)
	}
	return out, err
}

func (m *Merger) merge(ctx context.Context, inputs []artifacts.Artifact, baseLabel *string) (artifacts.Artifact, error) {
	if len(inputs) < 2 {
		return artifacts.Artifact{}, failure.New(failure.KindInvalidRequest, "a merge needs at least 2 inputs, got %d", len(inputs))
	}

	var (
		mu    sync.Mutex
		owned []artifacts.Artifact
	)
	defer func() {
		cleanup := context.WithoutCancel(ctx)
		for _, a := range owned {
			if err := m.store.Delete(cleanup, a); err != nil {
				logging.Warn("failed to remove merge intermediate %s: %v", a.ID, err)
			}
		}
	}()

	categories := make([]formats.Category, len(inputs))
	for i, in := range inputs {
		categories[i] = m.store.Catalog().CategoryOf(in.Ext)
		if _, ok := NormalTarget(categories[i]); !ok {
			return artifacts.Artifact{}, failure.New(failure.KindUnsupportedConversion, "cannot merge %s: unknown format %q", in.Name, in.Ext)
		}
	}

	normalized := make([]Input, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers.ForMerge(len(inputs)))
	for i, in := range inputs {
		target, _ := NormalTarget(categories[i])
		g.Go(func() error {
			if m.gate != nil {
				if err := m.gate.Wait(gctx); err != nil {
					return err
				}
			}
			out, err := m.conv.Convert(gctx, convert.Request{Source: in, Target: target})
			if err != nil {
				return err
			}
			if out.ID != in.ID {
				mu.Lock()
				owned = append(owned, out)
				mu.Unlock()
			}
			normalized[i] = Input{Artifact: out, Category: categories[i]}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return artifacts.Artifact{}, failure.Ensure(err, failure.KindBackendExecutionFailed, "normalize merge inputs")
	}

	job, err := Plan(normalized)
	if err != nil {
		return artifacts.Artifact{}, err
	}
	*baseLabel = string(job.Base.Category)

	extras := make([]artifacts.Artifact, len(job.Extras))
	for i, e := range job.Extras {
		extras[i] = e.Artifact
	}
	return m.Embed(ctx, job.Base.Artifact, extras)
}

// Embed embeds extras into base with the codec for base's extension and
// saves the result as a new artifact with the same extension. Neither base
// nor extras are modified.
func (m *Merger) Embed(ctx context.Context, base artifacts.Artifact, extras []artifacts.Artifact) (artifacts.Artifact, error) {
	if len(extras) == 0 {
		return artifacts.Artifact{}, failure.New(failure.KindInvalidRequest, "nothing to embed into %s", base.Name)
	}

	baseData, err := m.store.Read(base)
	if err != nil {
		return artifacts.Artifact{}, failure.Wrap(failure.KindInvalidRequest, err, "read base %s", base.ID)
	}
	payloads := make([]containers.Extra, len(extras))
	for i, e := range extras {
		data, err := m.store.Read(e)
		if err != nil {
			return artifacts.Artifact{}, failure.Wrap(failure.KindInvalidRequest, err, "read extra %s", e.ID)
		}
		payloads[i] = containers.Extra{Name: e.Name, Data: data}
	}

	codec := m.codecs.ForExt(base.Ext)
	if !containers.Structured(codec) {
		logging.Debug("no structured codec for %s, appending %d payloads", base.Ext, len(payloads))
	}
	out, err := containers.Embed(ctx, codec, baseData, payloads)
	if err != nil {
		return artifacts.Artifact{}, err
	}

	merged, err := m.store.Save(ctx, out, base.Ext, base.Name)
	if err != nil {
		return artifacts.Artifact{}, failure.Wrap(failure.KindBackendExecutionFailed, err, "save merged %s", base.Ext)
	}
	logging.Info("merged %d payloads into %s (%s codec, %d bytes)", len(payloads), merged.ID, codec.Name(), len(out))
	return merged, nil
}
