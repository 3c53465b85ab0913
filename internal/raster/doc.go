// Package raster converts between raster image formats.
//
// Decoding goes through imaging (jpg, png, gif, bmp, tiff), x/image/webp,
// a built-in PBM decoder, the PNG entry of ICO files, and libvips for heic
// and avif. Before encoding, pixels are normalized to the mode the target
// format requires:
//
//	jpg, bmp                      RGB, alpha flattened onto white
//	png, tiff, webp, ico, avif... NRGBA, alpha kept
//	gif                           Plan9 palette, Floyd-Steinberg dithering
//	pbm                           1-bit, luma threshold
//
// ICO output is a single-entry icon wrapping a PNG. The source is
// center-cropped to a square and resized to the largest configured icon
// edge that does not upscale it.
//
// Encoding webp, avif and heic requires libvips. Call InitVips once at
// startup and register VipsBackend so the dispatcher can report it missing.
package raster
