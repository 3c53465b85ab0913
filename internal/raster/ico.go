package raster

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

const (
	icoHeaderSize = 6
	icoEntrySize  = 16
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// IconEdge picks the ICO edge for a w×h source: the largest allowed size not
// exceeding the shorter side, or the smallest allowed size when the source is
// smaller than all of them. sizes must be sorted ascending.
func IconEdge(w, h int, sizes []int) int {
	square := min(w, h)
	edge := sizes[0]
	for _, s := range sizes {
		if s <= square {
			edge = s
		}
	}
	return edge
}

// EncodeICO center-crops img to a square, resizes it to the chosen edge and
// wraps it as a single PNG entry.
func EncodeICO(img image.Image, sizes []int) ([]byte, error) {
	if len(sizes) == 0 {
		sizes = DefaultIconSizes
	}
	b := img.Bounds()
	square := min(b.Dx(), b.Dy())
	if square == 0 {
		return nil, errors.New("cannot build icon from empty image")
	}
	edge := IconEdge(b.Dx(), b.Dy(), sizes)

	icon := imaging.Resize(imaging.CropCenter(img, square, square), edge, edge, imaging.Lanczos)

	var buf bytes.Buffer
	if err := png.Encode(&buf, icon); err != nil {
		return nil, err
	}
	return wrapICO(buf.Bytes(), edge), nil
}

// wrapICO builds ICONDIR + one ICONDIRENTRY + the PNG payload.
func wrapICO(pngData []byte, edge int) []byte {
	out := make([]byte, icoHeaderSize+icoEntrySize, icoHeaderSize+icoEntrySize+len(pngData))

	binary.LittleEndian.PutUint16(out[0:], 0) // reserved
	binary.LittleEndian.PutUint16(out[2:], 1) // type: icon
	binary.LittleEndian.PutUint16(out[4:], 1) // count

	// 256 is stored as 0
	dim := byte(edge)
	if edge >= 256 {
		dim = 0
	}
	e := out[icoHeaderSize:]
	e[0] = dim
	e[1] = dim
	e[2] = 0                                 // palette size
	e[3] = 0                                 // reserved
	binary.LittleEndian.PutUint16(e[4:], 1)  // planes
	binary.LittleEndian.PutUint16(e[6:], 32) // bits per pixel
	binary.LittleEndian.PutUint32(e[8:], uint32(len(pngData)))
	binary.LittleEndian.PutUint32(e[12:], icoHeaderSize+icoEntrySize)

	return append(out, pngData...)
}

// DecodeICO decodes the largest PNG-encoded entry of an ICO file.
func DecodeICO(data []byte) (image.Image, error) {
	if len(data) < icoHeaderSize {
		return nil, errors.New("ico: truncated header")
	}
	if binary.LittleEndian.Uint16(data[0:]) != 0 || binary.LittleEndian.Uint16(data[2:]) != 1 {
		return nil, errors.New("ico: bad header")
	}
	count := int(binary.LittleEndian.Uint16(data[4:]))
	if len(data) < icoHeaderSize+count*icoEntrySize {
		return nil, errors.New("ico: truncated directory")
	}

	best, bestEdge := -1, 0
	for i := 0; i < count; i++ {
		e := data[icoHeaderSize+i*icoEntrySize:]
		size := int(binary.LittleEndian.Uint32(e[8:]))
		offset := int(binary.LittleEndian.Uint32(e[12:]))
		if offset < 0 || size < len(pngSignature) || offset+size > len(data) {
			continue
		}
		if !bytes.HasPrefix(data[offset:], pngSignature) {
			continue
		}
		edge := int(e[0])
		if edge == 0 {
			edge = 256
		}
		if edge > bestEdge {
			best, bestEdge = i, edge
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("ico: no PNG entry among %d", count)
	}

	e := data[icoHeaderSize+best*icoEntrySize:]
	size := binary.LittleEndian.Uint32(e[8:])
	offset := binary.LittleEndian.Uint32(e[12:])
	return png.Decode(bytes.NewReader(data[offset : offset+size]))
}
