// Package metadata reads and strips embedded file metadata with an external
// command.
//
// The only implementation wraps exiftool. It is optional: when the binary is
// missing the tool reports itself unavailable and callers skip metadata work.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"uniconverter/internal/failure"
	"uniconverter/internal/logging"
)

// BackendName is the capability name of the metadata backend.
const BackendName = "exiftool"

const defaultTimeout = 30 * time.Second

// Tool reads and removes metadata.
type Tool interface {
	Name() string
	Available() bool
	Read(ctx context.Context, path string) (map[string]any, error)
	StripAll(ctx context.Context, path string) error
}

// ExifTool runs the exiftool command.
type ExifTool struct {
	bin      string
	timeout  time.Duration
	lookPath func(string) (string, error)
}

// NewExifTool returns an exiftool wrapper. bin defaults to "exiftool".
func NewExifTool(bin string) *ExifTool {
	if bin == "" {
		bin = "exiftool"
	}
	return &ExifTool{bin: bin, timeout: defaultTimeout, lookPath: exec.LookPath}
}

// Name implements the capability registry contract.
func (e *ExifTool) Name() string { return BackendName }

// Available reports whether exiftool can be found.
func (e *ExifTool) Available() bool {
	_, err := e.lookPath(e.bin)
	return err == nil
}

// Read returns the tags exiftool reports for path.
func (e *ExifTool) Read(ctx context.Context, path string) (map[string]any, error) {
	out, err := e.run(ctx, "-json", "-n", path)
	if err != nil {
		return nil, err
	}
	return parseJSON(out)
}

// StripAll removes all writable metadata from path in place.
func (e *ExifTool) StripAll(ctx context.Context, path string) error {
	_, err := e.run(ctx, "-all=", "-overwrite_original", "-q", path)
	if err == nil {
		logging.Debug("metadata stripped from %s", filepath.Base(path))
	}
	return err
}

func (e *ExifTool) run(ctx context.Context, args ...string) ([]byte, error) {
	bin, err := e.lookPath(e.bin)
	if err != nil {
		return nil, failure.Wrap(failure.KindBackendUnavailable, err, "exiftool not found")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, failure.Wrap(failure.KindBackendExecutionFailed, err, "exiftool: %s", strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// parseJSON decodes exiftool's one-element JSON array. SourceFile is dropped
// since it leaks the server-side path.
func parseJSON(data []byte) (map[string]any, error) {
	var results []map[string]any
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to parse exiftool output: %w", err)
	}
	if len(results) == 0 {
		return map[string]any{}, nil
	}
	tags := results[0]
	delete(tags, "SourceFile")
	return tags, nil
}
