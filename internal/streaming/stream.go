package streaming

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"uniconverter/internal/logging"
)

var (
	// ErrWriteTimeout means a chunk could not be written in time, usually
	// because the client stopped reading.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone means the request context ended mid-stream.
	ErrClientGone = errors.New("client disconnected")
)

// Config bounds a single download.
type Config struct {
	// WriteTimeout is the time allowed for each chunk.
	WriteTimeout time.Duration
	// ChunkSize is the read and flush unit.
	ChunkSize int
}

// DefaultConfig returns the download defaults.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		ChunkSize:    256 * 1024,
	}
}

// Copy streams r to w one chunk at a time, flushing after each chunk.
// Every chunk gets a fresh write deadline so a stalled client is cut off
// while a slow but steady one is not. Writers that do not support
// deadlines are streamed without them.
func Copy(ctx context.Context, w http.ResponseWriter, r io.Reader, config Config) (int64, error) {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultConfig().ChunkSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}

	rc := http.NewResponseController(w)
	deadlines := true
	defer func() {
		if deadlines {
			_ = rc.SetWriteDeadline(time.Time{})
		}
	}()

	buf := make([]byte, config.ChunkSize)
	var written int64
	for {
		if ctx.Err() != nil {
			return written, ErrClientGone
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			if deadlines {
				if err := rc.SetWriteDeadline(time.Now().Add(config.WriteTimeout)); err != nil {
					logging.Debug("write deadlines unsupported, streaming without: %v", err)
					deadlines = false
				}
			}

			m, err := w.Write(buf[:n])
			written += int64(m)
			if err != nil {
				return written, classify(ctx, err)
			}
			_ = rc.Flush()
		}

		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

func classify(ctx context.Context, err error) error {
	var netErr net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return ErrWriteTimeout
	}
	if ctx.Err() != nil {
		return ErrClientGone
	}
	return err
}
