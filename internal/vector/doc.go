// Package vector traces raster images into SVG.
//
// The image is quantized to a small palette with k-means, each palette color
// is split into 4-connected regions, and the outer boundary of every region
// at least MinArea pixels large is traced with Moore-neighbour tracing and
// emitted as one filled <path>. Colors are traced independently, so regions
// of different colors may overlap at their edges; holes are not cut out.
//
// Seeding is farthest-point from the first opaque pixel, so the same input
// always produces the same SVG.
package vector
