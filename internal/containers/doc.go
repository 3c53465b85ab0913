// Package containers embeds extra payloads into binary containers without
// breaking the host format.
//
// Each codec takes a base container and a list of extras and returns a new
// buffer; the base is never modified in place.
//
//	PNG / ICO  one ancillary "poLy" chunk inserted right before IEND. An ICO
//	           base gets the chunk inside its PNG entry, with the directory's
//	           byte count and later offsets patched.
//	MP4        one top-level "uuid" box per extra, appended, then verified by
//	           a structural walk and ffprobe when available.
//	PDF        one embedded file attachment per extra, then re-read and
//	           validated.
//	raw        plain concatenation, best effort.
//
// Chunk and box construction is done by pure functions returning a Patch, so
// the byte layout can be tested without touching the filesystem.
package containers
