package containers

import (
	"context"
	"fmt"

	"uniconverter/internal/failure"
	"uniconverter/internal/formats"
	"uniconverter/internal/metrics"

	"github.com/google/uuid"
)

// Extra is one payload to embed.
type Extra struct {
	// Name labels the payload: the PNG separator, the PDF attachment name.
	Name string
	Data []byte
	// ID is the MP4 uuid box extended type; a random v4 id is used when zero.
	ID uuid.UUID
}

// Patch describes inserting Bytes at Offset of a buffer.
type Patch struct {
	Offset int
	Bytes  []byte
}

// Apply returns a copy of base with p inserted. base is not modified.
func (p Patch) Apply(base []byte) []byte {
	out := make([]byte, 0, len(base)+len(p.Bytes))
	out = append(out, base[:p.Offset]...)
	out = append(out, p.Bytes...)
	return append(out, base[p.Offset:]...)
}

// Codec embeds extras into a base container.
type Codec interface {
	Name() string
	Embed(ctx context.Context, base []byte, extras []Extra) ([]byte, error)
}

// Codecs selects a codec by base extension.
type Codecs struct {
	png Codec
	mp4 Codec
	pdf Codec
	raw Codec
}

// New returns the codec set. prober may be nil.
func New(prober Prober) *Codecs {
	return &Codecs{
		png: PNGCodec{},
		mp4: NewMP4Codec(prober),
		pdf: NewPDFCodec(),
		raw: RawCodec{},
	}
}

var defaultCodecs = New(nil)

// ForExt returns the codec for a base extension from the default set, which
// verifies MP4 output structurally only.
func ForExt(ext string) Codec {
	return defaultCodecs.ForExt(ext)
}

// ForExt returns the codec for a base extension: png and ico use the PNG
// codec, mp4 and pdf their own, anything else the raw codec.
func (c *Codecs) ForExt(ext string) Codec {
	switch formats.Normalize(ext) {
	case "png", "ico":
		return c.png
	case "mp4":
		return c.mp4
	case "pdf":
		return c.pdf
	default:
		return c.raw
	}
}

// Structured reports whether codec understands its container's structure.
func Structured(codec Codec) bool {
	return codec.Name() != RawCodecName
}

// Embed runs codec and records metrics. Errors are always *failure.Error.
func Embed(ctx context.Context, codec Codec, base []byte, extras []Extra) ([]byte, error) {
	out, err := codec.Embed(ctx, base, extras)
	err = failure.Ensure(err, failure.KindContainerIntegrityFailed, "%s embed", codec.Name())

	metrics.CodecEmbedsTotal.WithLabelValues(codec.Name(), metrics.StatusLabel(err)).Inc()
	if err == nil {
		payload := 0
		for _, e := range extras {
			payload += len(e.Data)
		}
		metrics.CodecPayloadBytes.WithLabelValues(codec.Name()).Observe(float64(payload))
	}
	return out, err
}

// Separator is written before each extra in PNG payloads.
func Separator(name string) string {
	return fmt.Sprintf("\n--- polyglot:%s ---\n", name)
}

func integrity(format string, args ...interface{}) error {
	return failure.New(failure.KindContainerIntegrityFailed, format, args...)
}
