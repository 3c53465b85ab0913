package vector

import "image/color"

type center struct {
	r, g, b float64
}

func (c center) dist(p color.NRGBA) float64 {
	dr := c.r - float64(p.R)
	dg := c.g - float64(p.G)
	db := c.b - float64(p.B)
	return dr*dr + dg*dg + db*db
}

func (c center) color() color.NRGBA {
	return color.NRGBA{R: clamp8(c.r), G: clamp8(c.g), B: clamp8(c.b), A: 255}
}

func clamp8(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v + 0.5)
}

// kmeans returns up to k palette colors for the opaque pixels. Fewer are
// returned when the image has fewer distinct colors.
func kmeans(pixels []color.NRGBA, opaque []bool, k int) []color.NRGBA {
	stride := len(pixels)/maxSamples + 1
	var samples []color.NRGBA
	for i := 0; i < len(pixels); i += stride {
		if opaque[i] {
			samples = append(samples, pixels[i])
		}
	}
	if len(samples) == 0 {
		return nil
	}

	centers := seed(samples, k)

	assignments := make([]int, len(samples))
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, p := range samples {
			if best := nearest(centers, p); best != assignments[i] {
				assignments[i] = best
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}

		sums := make([]center, len(centers))
		counts := make([]int, len(centers))
		for i, p := range samples {
			a := assignments[i]
			sums[a].r += float64(p.R)
			sums[a].g += float64(p.G)
			sums[a].b += float64(p.B)
			counts[a]++
		}
		for i := range centers {
			// an empty cluster keeps its previous center
			if counts[i] == 0 {
				continue
			}
			n := float64(counts[i])
			centers[i] = center{sums[i].r / n, sums[i].g / n, sums[i].b / n}
		}
	}

	out := make([]color.NRGBA, len(centers))
	for i, c := range centers {
		out[i] = c.color()
	}
	return out
}

// seed picks the first sample, then repeatedly the sample farthest from all
// chosen centers, stopping early once every sample coincides with one.
func seed(samples []color.NRGBA, k int) []center {
	first := samples[0]
	centers := []center{{float64(first.R), float64(first.G), float64(first.B)}}

	minDist := make([]float64, len(samples))
	for i, p := range samples {
		minDist[i] = centers[0].dist(p)
	}

	for len(centers) < k {
		far, farDist := -1, 0.0
		for i, d := range minDist {
			if d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			break
		}
		p := samples[far]
		c := center{float64(p.R), float64(p.G), float64(p.B)}
		centers = append(centers, c)
		for i, q := range samples {
			if d := c.dist(q); d < minDist[i] {
				minDist[i] = d
			}
		}
	}
	return centers
}

func nearest(palette []center, p color.NRGBA) int {
	best, bestDist := 0, palette[0].dist(p)
	for i := 1; i < len(palette); i++ {
		if d := palette[i].dist(p); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// assign labels every pixel with its palette index, or -1 when transparent.
func assign(pixels []color.NRGBA, opaque []bool, palette []color.NRGBA) []int {
	centers := make([]center, len(palette))
	for i, c := range palette {
		centers[i] = center{float64(c.R), float64(c.G), float64(c.B)}
	}

	labels := make([]int, len(pixels))
	for i, p := range pixels {
		if !opaque[i] || len(centers) == 0 {
			labels[i] = -1
			continue
		}
		labels[i] = nearest(centers, p)
	}
	return labels
}
