package containers

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/abema/go-mp4"
	"github.com/google/uuid"

	"uniconverter/internal/logging"
	"uniconverter/internal/metrics"
	"uniconverter/internal/transcoder"
)

// MP4CodecName is the name of the MP4 codec.
const MP4CodecName = "mp4"

// Prober inspects a media file on disk.
type Prober interface {
	ProbeAvailable() bool
	Probe(ctx context.Context, path string) (*transcoder.Info, error)
}

// MP4Codec appends one top-level uuid box per extra.
type MP4Codec struct {
	prober Prober
}

// NewMP4Codec returns an MP4 codec. When prober is non-nil and available,
// output is also checked with it.
func NewMP4Codec(prober Prober) *MP4Codec {
	return &MP4Codec{prober: prober}
}

// Name returns "mp4".
func (c *MP4Codec) Name() string { return MP4CodecName }

// Embed appends the uuid boxes and verifies the result.
func (c *MP4Codec) Embed(ctx context.Context, base []byte, extras []Extra) ([]byte, error) {
	if _, err := TopLevelBoxes(base); err != nil {
		return nil, err
	}

	size := len(base)
	boxes := make([][]byte, len(extras))
	for i, e := range extras {
		boxes[i] = BuildUUIDBox(e.ID, e.Data)
		size += len(boxes[i])
	}
	out := make([]byte, 0, size)
	out = append(out, base...)
	for _, b := range boxes {
		out = append(out, b...)
	}

	if err := c.verify(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// BuildUUIDBox encodes a uuid box: size, "uuid", the 16-byte extended type
// and the payload. Payloads too large for a 32-bit size use the 64-bit form.
func BuildUUIDBox(id uuid.UUID, payload []byte) []byte {
	if id == uuid.Nil {
		id = uuid.New()
	}

	total := uint64(24 + len(payload))
	var out []byte
	if total <= math.MaxUint32 {
		out = make([]byte, 8, total)
		binary.BigEndian.PutUint32(out, uint32(total))
		copy(out[4:], "uuid")
	} else {
		total += 8
		out = make([]byte, 16, total)
		binary.BigEndian.PutUint32(out, 1)
		copy(out[4:], "uuid")
		binary.BigEndian.PutUint64(out[8:], total)
	}
	out = append(out, id[:]...)
	return append(out, payload...)
}

// Box is a located top-level box.
type Box struct {
	Type   string
	Offset uint64
	Size   uint64
}

// TopLevelBoxes walks the top-level boxes with go-mp4 and checks that they
// tile the file exactly and include ftyp and moov.
func TopLevelBoxes(data []byte) ([]Box, error) {
	var boxes []Box
	_, err := mp4.ReadBoxStructure(bytes.NewReader(data), func(h *mp4.ReadHandle) (interface{}, error) {
		boxes = append(boxes, Box{
			Type:   h.BoxInfo.Type.String(),
			Offset: h.BoxInfo.Offset,
			Size:   h.BoxInfo.Size,
		})
		// top level only
		return nil, nil
	})
	if err != nil {
		return nil, integrity("mp4 box walk failed: %v", err)
	}

	var end uint64
	seen := make(map[string]bool)
	for _, b := range boxes {
		if b.Offset != end {
			return nil, integrity("mp4 box %s at %d leaves a gap after %d", b.Type, b.Offset, end)
		}
		end = b.Offset + b.Size
		seen[b.Type] = true
	}
	if end != uint64(len(data)) {
		return nil, integrity("mp4 boxes cover %d of %d bytes", end, len(data))
	}
	if !seen["ftyp"] || !seen["moov"] {
		return nil, integrity("mp4 is missing ftyp or moov")
	}
	return boxes, nil
}

func (c *MP4Codec) verify(ctx context.Context, out []byte) error {
	start := time.Now()
	_, err := TopLevelBoxes(out)
	metrics.ContainerProbeDuration.WithLabelValues("structure").Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	if c.prober == nil || !c.prober.ProbeAvailable() {
		logging.Debug("mp4: ffprobe unavailable, structural check only")
		return nil
	}

	tmp, err := os.CreateTemp("", "polyglot-*.mp4")
	if err != nil {
		return fmt.Errorf("failed to stage mp4 for probing: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	start = time.Now()
	info, err := c.prober.Probe(ctx, tmp.Name())
	metrics.ContainerProbeDuration.WithLabelValues("ffprobe").Observe(time.Since(start).Seconds())
	if err != nil {
		return integrity("ffprobe rejected %s: %v", filepath.Base(tmp.Name()), err)
	}
	if len(info.Streams) == 0 {
		return integrity("ffprobe found no streams after embedding")
	}
	return nil
}
