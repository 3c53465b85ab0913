// Package polyglot merges several artifacts into one file that opens as its
// base format while carrying the others as embedded payloads.
//
// A merge normalizes every input into its category's container (image to
// ico, audio and video to mp4, document to pdf, archive to zip), ranks the
// inputs video, audio, image, document, archive and picks the first video,
// audio or document input as the base. The remaining inputs are embedded
// into the base with the container codec for its extension.
package polyglot
