package streaming

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCopyWritesEverything(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 10_000)
	rec := httptest.NewRecorder()

	n, err := Copy(context.Background(), rec, bytes.NewReader(payload), Config{ChunkSize: 4096, WriteTimeout: time.Second})
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if n != int64(len(payload)) || !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Errorf("copied %d bytes, body matches = %v", n, bytes.Equal(rec.Body.Bytes(), payload))
	}
	if !rec.Flushed {
		t.Error("chunks were not flushed")
	}
}

func TestCopyCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := Copy(ctx, httptest.NewRecorder(), strings.NewReader("data"), DefaultConfig())
	if !errors.Is(err, ErrClientGone) || n != 0 {
		t.Errorf("Copy() = %d, %v; want 0, ErrClientGone", n, err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestCopyReadError(t *testing.T) {
	_, err := Copy(context.Background(), httptest.NewRecorder(), failingReader{}, DefaultConfig())
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Copy() error = %v, want io.ErrUnexpectedEOF", err)
	}
}

type endless struct{}

func (endless) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'x'
	}
	return len(p), nil
}

func TestCopyStalledClientTimesOut(t *testing.T) {
	result := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := Copy(r.Context(), w, endless{}, Config{ChunkSize: 64 * 1024, WriteTimeout: 100 * time.Millisecond})
		result <- err
	}))
	defer srv.Close()

	conn, err := net.Dial("tcp", srv.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// Read the status line, then stop reading so the socket buffers fill.
	fmt.Fprintf(conn, "GET / HTTP/1.1\r\nHost: test\r\n\r\n")
	if _, err := bufio.NewReader(conn).ReadString('\n'); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-result:
		if !errors.Is(err, ErrWriteTimeout) {
			t.Errorf("Copy() error = %v, want ErrWriteTimeout", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("stalled client was never cut off")
	}
}
