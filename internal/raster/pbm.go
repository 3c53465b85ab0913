package raster

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
)

func init() {
	image.RegisterFormat("pbm", "P4", decodePBM, decodePBMConfig)
	image.RegisterFormat("pbm", "P1", decodePBM, decodePBMConfig)
}

// EncodePBM writes img as a binary (P4) portable bitmap. Pixels with luma
// below 128 are black.
func EncodePBM(w io.Writer, img image.Image) error {
	b := img.Bounds()
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P4\n%d %d\n", b.Dx(), b.Dy()); err != nil {
		return err
	}

	row := make([]byte, (b.Dx()+7)/8)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		clear(row)
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y < 128 {
				i := x - b.Min.X
				row[i/8] |= 0x80 >> (i % 8)
			}
		}
		if _, err := bw.Write(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

type pbmHeader struct {
	binary        bool
	width, height int
}

func readPBMHeader(r *bufio.Reader) (pbmHeader, error) {
	var h pbmHeader
	magic := make([]byte, 2)
	if _, err := io.ReadFull(r, magic); err != nil {
		return h, err
	}
	switch string(magic) {
	case "P4":
		h.binary = true
	case "P1":
	default:
		return h, errors.New("pbm: bad magic")
	}

	var err error
	if h.width, err = readPBMInt(r); err != nil {
		return h, err
	}
	if h.height, err = readPBMInt(r); err != nil {
		return h, err
	}
	if h.width <= 0 || h.height <= 0 {
		return h, fmt.Errorf("pbm: invalid size %dx%d", h.width, h.height)
	}
	// exactly one whitespace byte separates the header from P4 data
	if h.binary {
		if _, err := r.ReadByte(); err != nil {
			return h, err
		}
	}
	return h, nil
}

// readPBMInt skips whitespace and comments, then reads a decimal integer.
func readPBMInt(r *bufio.Reader) (int, error) {
	n, digits := 0, 0
	for {
		c, err := r.ReadByte()
		if err != nil {
			if digits > 0 && err == io.EOF {
				return n, nil
			}
			return 0, err
		}
		switch {
		case c == '#' && digits == 0:
			if _, err := r.ReadString('\n'); err != nil {
				return 0, err
			}
		case c >= '0' && c <= '9':
			n = n*10 + int(c-'0')
			digits++
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			if digits > 0 {
				_ = r.UnreadByte()
				return n, nil
			}
		default:
			return 0, fmt.Errorf("pbm: unexpected byte %q in header", c)
		}
	}
}

func decodePBMConfig(r io.Reader) (image.Config, error) {
	h, err := readPBMHeader(bufio.NewReader(r))
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{ColorModel: color.GrayModel, Width: h.width, Height: h.height}, nil
}

func decodePBM(r io.Reader) (image.Image, error) {
	br := bufio.NewReader(r)
	h, err := readPBMHeader(br)
	if err != nil {
		return nil, err
	}

	img := image.NewGray(image.Rect(0, 0, h.width, h.height))
	if h.binary {
		row := make([]byte, (h.width+7)/8)
		for y := 0; y < h.height; y++ {
			if _, err := io.ReadFull(br, row); err != nil {
				return nil, fmt.Errorf("pbm: short pixel data: %w", err)
			}
			for x := 0; x < h.width; x++ {
				if row[x/8]&(0x80>>(x%8)) == 0 {
					img.SetGray(x, y, color.Gray{Y: 255})
				}
			}
		}
		return img, nil
	}

	for i := 0; i < h.width*h.height; {
		c, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("pbm: short pixel data: %w", err)
		}
		switch c {
		case '0':
			img.SetGray(i%h.width, i/h.width, color.Gray{Y: 255})
			i++
		case '1':
			i++
		case '#':
			if _, err := br.ReadString('\n'); err != nil {
				return nil, err
			}
		}
	}
	return img, nil
}
