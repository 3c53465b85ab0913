package containers

import (
	"bytes"
	"encoding/binary"
)

const (
	icoHeaderSize = 6
	icoEntrySize  = 16
)

func isICO(data []byte) bool {
	return len(data) >= icoHeaderSize &&
		binary.LittleEndian.Uint16(data[0:]) == 0 &&
		binary.LittleEndian.Uint16(data[2:]) == 1
}

// IconEntry is one ICONDIRENTRY.
type IconEntry struct {
	Index  int
	Size   uint32
	Offset uint32
	PNG    bool
}

// ParseICO returns the directory entries of an ICO file.
func ParseICO(data []byte) ([]IconEntry, error) {
	if !isICO(data) {
		return nil, integrity("not an ICO: bad header")
	}
	count := int(binary.LittleEndian.Uint16(data[4:]))
	if len(data) < icoHeaderSize+count*icoEntrySize {
		return nil, integrity("ICO directory truncated")
	}

	entries := make([]IconEntry, count)
	for i := range entries {
		e := data[icoHeaderSize+i*icoEntrySize:]
		entry := IconEntry{
			Index:  i,
			Size:   binary.LittleEndian.Uint32(e[8:]),
			Offset: binary.LittleEndian.Uint32(e[12:]),
		}
		end := uint64(entry.Offset) + uint64(entry.Size)
		if end > uint64(len(data)) {
			return nil, integrity("ICO entry %d overruns the file", i)
		}
		entry.PNG = bytes.HasPrefix(data[entry.Offset:end], pngSignature)
		entries[i] = entry
	}
	return entries, nil
}

// embedICO splices the poLy chunk into the first PNG entry, grows that
// entry's byte count and shifts the offsets of entries stored after it.
func embedICO(base []byte, extras []Extra) ([]byte, error) {
	entries, err := ParseICO(base)
	if err != nil {
		return nil, err
	}

	target := -1
	for i, e := range entries {
		if e.PNG {
			target = i
			break
		}
	}
	if target < 0 {
		return nil, integrity("ICO has no PNG entry to host the payload")
	}

	host := entries[target]
	inner, err := PNGPatch(base[host.Offset:host.Offset+host.Size], extras)
	if err != nil {
		return nil, err
	}
	patch := Patch{Offset: int(host.Offset) + inner.Offset, Bytes: inner.Bytes}
	out := patch.Apply(base)

	grow := uint32(len(inner.Bytes))
	for _, e := range entries {
		dir := out[icoHeaderSize+e.Index*icoEntrySize:]
		switch {
		case e.Index == host.Index:
			binary.LittleEndian.PutUint32(dir[8:], e.Size+grow)
		case e.Offset > host.Offset:
			binary.LittleEndian.PutUint32(dir[12:], e.Offset+grow)
		}
	}
	return out, nil
}
