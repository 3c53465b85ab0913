// Package formats provides the format catalog shared by every conversion
// component.
//
// The package is a dependency-free foundation: it classifies file extensions
// into media categories and answers whether a pair of formats can be
// converted. It contains tables and pure functions only.
//
// # Categories
//
//	formats.CategoryImage    // jpg, png, gif, webp, ico, svg, ...
//	formats.CategoryAudio    // mp3, wav, flac, ...
//	formats.CategoryVideo    // mp4, mov, webm, ...
//	formats.CategoryDocument // pdf, txt
//	formats.CategoryArchive  // zip, tar.gz, 7z
//	formats.CategoryUnknown  // anything else; callers must stop here
//
// # Catalog
//
// The catalog is built once with Default and shared by pointer. It has no
// mutators, so concurrent readers need no locking:
//
//	catalog := formats.Default()
//	catalog.CategoryOf("JPG")          // CategoryImage
//	catalog.CanConvert("pdf", "png")   // true (document into image)
//	catalog.CanConvert("mp3", "pdf")   // false
//
// Extensions are normalized before lookup: case is folded, a leading dot is
// dropped and "tgz" is an alias of "tar.gz". Use ExtOf to take the extension
// of a path, which keeps the double "tar.gz" extension intact.
package formats
