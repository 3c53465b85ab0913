package startup

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// VectorProfile tunes raster to SVG tracing.
type VectorProfile struct {
	Colors  int `yaml:"colors"`
	MinArea int `yaml:"min_area"`
}

// Profile holds adapter tuning read from PROFILE_FILE. Zero values leave
// the adapter defaults in place.
type Profile struct {
	IconSizes   []int         `yaml:"icon_sizes"`
	JPEGQuality int           `yaml:"jpeg_quality"`
	PDFDPI      float64       `yaml:"pdf_dpi"`
	Vector      VectorProfile `yaml:"vector"`
	AudioCodec  string        `yaml:"audio_codec"`
	VideoCodec  string        `yaml:"video_codec"`
}

// LoadProfile reads a YAML profile. Unknown keys are rejected so typos do
// not silently fall back to defaults.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes and validates a YAML profile.
func ParseProfile(data []byte) (Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Profile{}, fmt.Errorf("failed to parse profile: %w", err)
	}
	if err := p.validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (p Profile) validate() error {
	for _, size := range p.IconSizes {
		if size < 1 || size > 256 {
			return fmt.Errorf("icon size %d out of range 1-256", size)
		}
	}
	if p.JPEGQuality < 0 || p.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality %d out of range 0-100", p.JPEGQuality)
	}
	if p.PDFDPI < 0 {
		return fmt.Errorf("pdf_dpi must not be negative")
	}
	if p.Vector.Colors < 0 || p.Vector.Colors > 256 {
		return fmt.Errorf("vector.colors %d out of range 0-256", p.Vector.Colors)
	}
	if p.Vector.MinArea < 0 {
		return fmt.Errorf("vector.min_area must not be negative")
	}
	return nil
}
