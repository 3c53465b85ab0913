package containers

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"math"
)

// PNGCodecName is the name of the PNG/ICO codec.
const PNGCodecName = "png"

// PolyglotChunkType is the ancillary, private, safe-to-copy chunk that carries
// embedded payloads.
const PolyglotChunkType = "poLy"

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// PNGCodec embeds extras in a PNG chunk, or in the PNG entry of an ICO.
type PNGCodec struct{}

// Name returns "png".
func (PNGCodec) Name() string { return PNGCodecName }

// Embed inserts one poLy chunk before IEND.
func (PNGCodec) Embed(ctx context.Context, base []byte, extras []Extra) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if isICO(base) {
		return embedICO(base, extras)
	}
	patch, err := PNGPatch(base, extras)
	if err != nil {
		return nil, err
	}
	return patch.Apply(base), nil
}

// Chunk is a located PNG chunk.
type Chunk struct {
	Offset int
	Type   string
	Data   []byte
	CRC    uint32
}

// WalkChunks parses every chunk from the signature through IEND.
func WalkChunks(png []byte) ([]Chunk, error) {
	if !bytes.HasPrefix(png, pngSignature) {
		return nil, integrity("not a PNG: bad signature")
	}

	var chunks []Chunk
	off := len(pngSignature)
	for {
		if off+12 > len(png) {
			return nil, integrity("PNG truncated at offset %d", off)
		}
		length := int(binary.BigEndian.Uint32(png[off:]))
		if length > math.MaxInt32 || off+12+length > len(png) {
			return nil, integrity("PNG chunk at offset %d overruns the file", off)
		}
		c := Chunk{
			Offset: off,
			Type:   string(png[off+4 : off+8]),
			Data:   png[off+8 : off+8+length],
			CRC:    binary.BigEndian.Uint32(png[off+8+length:]),
		}
		chunks = append(chunks, c)
		if c.Type == "IEND" {
			return chunks, nil
		}
		off += 12 + length
	}
}

// PolyglotPayload joins extras, each preceded by its separator.
func PolyglotPayload(extras []Extra) []byte {
	var buf bytes.Buffer
	for _, e := range extras {
		buf.WriteString(Separator(e.Name))
		buf.Write(e.Data)
	}
	return buf.Bytes()
}

// BuildChunk encodes a PNG chunk: length, type, data and the CRC-32 of type
// and data.
func BuildChunk(chunkType string, data []byte) []byte {
	out := make([]byte, 8, 12+len(data))
	binary.BigEndian.PutUint32(out, uint32(len(data)))
	copy(out[4:], chunkType)
	out = append(out, data...)

	crc := crc32.NewIEEE()
	crc.Write(out[4:])
	return binary.BigEndian.AppendUint32(out, crc.Sum32())
}

// PNGPatch locates IEND in png and returns the poLy chunk to insert there.
func PNGPatch(png []byte, extras []Extra) (Patch, error) {
	chunks, err := WalkChunks(png)
	if err != nil {
		return Patch{}, err
	}
	payload := PolyglotPayload(extras)
	if len(payload) > math.MaxInt32 {
		return Patch{}, integrity("payload of %d bytes exceeds the PNG chunk limit", len(payload))
	}
	iend := chunks[len(chunks)-1]
	return Patch{Offset: iend.Offset, Bytes: BuildChunk(PolyglotChunkType, payload)}, nil
}
