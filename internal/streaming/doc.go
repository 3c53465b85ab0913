// Package streaming sends large artifacts to HTTP clients without letting a
// stalled client hold a connection open forever.
//
// The main server runs without a global write timeout because conversions
// of long media can legitimately take minutes before the first byte is
// written. Downloads are instead bounded chunk by chunk: [Copy] sets a write
// deadline before each chunk through [http.ResponseController], so a client
// that keeps reading is never cut off, while one that stops reading fails
// with [ErrWriteTimeout] after a single chunk's timeout.
//
//	f, _ := os.Open(path)
//	defer f.Close()
//	if _, err := streaming.Copy(r.Context(), w, f, streaming.DefaultConfig()); err != nil {
//		logging.Warn("download stopped: %v", err)
//	}
package streaming
