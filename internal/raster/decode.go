package raster

import (
	"fmt"
	"image"
	"os"

	// Format decoders registered with image.Decode
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // WebP format support

	"uniconverter/internal/formats"
)

// Decode reads the image at path, choosing the decoder by extension.
func Decode(path string) (image.Image, error) {
	switch formats.ExtOf(path) {
	case "ico":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return DecodeICO(data)
	case "heic", "avif":
		return decodeWithVips(path)
	case "svg":
		return nil, fmt.Errorf("svg is not a raster source")
	}
	return imaging.Open(path, imaging.AutoOrientation(true))
}

// Dimensions holds image width and height
type Dimensions struct {
	Width  int
	Height int
}

// GetDimensions returns image dimensions without fully decoding the image.
func GetDimensions(path string) (*Dimensions, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, err
	}

	return &Dimensions{
		Width:  config.Width,
		Height: config.Height,
	}, nil
}
