// Package archive repacks file archives.
//
// Supported conversions are zip → tar.gz, tar.gz → zip and 7z → zip. Entries
// are streamed from the source reader to the destination writer one at a
// time, so archives are never fully loaded into memory. Entry names that are
// absolute or escape the archive root are rejected.
//
// Pack builds a zip from files on disk; the dispatcher uses it to bundle the
// pages of a multi-page document conversion.
package archive
