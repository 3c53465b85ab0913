package containers

import "context"

// RawCodecName is the name of the concatenating codec.
const RawCodecName = "raw"

// RawCodec appends extras after the base. Whether the result still opens
// depends on the base format tolerating trailing data.
type RawCodec struct{}

// Name returns "raw".
func (RawCodec) Name() string { return RawCodecName }

// Embed returns base followed by every extra in order.
func (RawCodec) Embed(ctx context.Context, base []byte, extras []Extra) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := len(base)
	for _, e := range extras {
		size += len(e.Data)
	}
	out := make([]byte, 0, size)
	out = append(out, base...)
	for _, e := range extras {
		out = append(out, e.Data...)
	}
	return out, nil
}
