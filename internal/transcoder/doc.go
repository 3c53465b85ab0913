// Package transcoder converts audio and video with FFmpeg and inspects
// containers with ffprobe.
//
// Conversions run "ffmpeg -y -i src [flags] dst". Audio targets drop video
// streams with -vn; audio sources written to a video container keep only
// their audio, encoded with the container's default audio codec (aac, or
// libopus for webm) unless the caller picks one. A zero exit status is
// success; otherwise ffmpeg's stderr becomes the error diagnostic.
//
// Both binaries must be on PATH (or configured explicitly). Availability is
// checked when a conversion is attempted, not at startup.
package transcoder
