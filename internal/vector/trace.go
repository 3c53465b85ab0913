package vector

import "image"

type region struct {
	start    image.Point
	area     int
	contains func(x, y int) bool
}

// regions returns the 4-connected regions of pixels labelled ci, in scan
// order of their first pixel. A region's start is its topmost, leftmost pixel.
func regions(labels []int, w, h, ci int) []region {
	ids := make([]int, len(labels))
	var out []region

	next := 0
	var stack []int
	for i, l := range labels {
		if l != ci || ids[i] != 0 {
			continue
		}
		next++
		id := next
		area := 0
		ids[i] = id
		stack = append(stack[:0], i)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			area++
			x, y := p%w, p/w
			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				if n[0] < 0 || n[0] >= w || n[1] < 0 || n[1] >= h {
					continue
				}
				q := n[1]*w + n[0]
				if labels[q] == ci && ids[q] == 0 {
					ids[q] = id
					stack = append(stack, q)
				}
			}
		}

		out = append(out, region{
			start: image.Pt(i%w, i/w),
			area:  area,
			contains: func(x, y int) bool {
				return x >= 0 && x < w && y >= 0 && y < h && ids[y*w+x] == id
			},
		})
	}
	return out
}

// Moore neighbourhood, clockwise from west.
var moore = [8]image.Point{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

func mooreIndex(d image.Point) int {
	for i, m := range moore {
		if m == d {
			return i
		}
	}
	return 0
}

// traceBoundary walks the outer boundary of the region containing start,
// which must be the region's topmost, leftmost pixel. The walk stops when it
// returns to start or after maxSteps.
func traceBoundary(contains func(x, y int) bool, start image.Point, maxSteps int) []image.Point {
	boundary := []image.Point{start}
	cur := start
	back := 0 // west of start is outside the region

	for step := 0; step < maxSteps; step++ {
		found := false
		for i := 1; i <= 8; i++ {
			d := (back + i) % 8
			n := cur.Add(moore[d])
			if contains(n.X, n.Y) {
				prev := cur.Add(moore[(back+i-1)%8])
				cur = n
				back = mooreIndex(prev.Sub(cur))
				found = true
				break
			}
		}
		if !found || cur == start {
			break
		}
		boundary = append(boundary, cur)
	}
	return boundary
}
