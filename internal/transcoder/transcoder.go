package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"uniconverter/internal/failure"
	"uniconverter/internal/formats"
	"uniconverter/internal/logging"
)

const (
	// BackendName is the capability name of the FFmpeg backend.
	BackendName = "ffmpeg"

	// DefaultProbeTimeout bounds a single ffprobe run.
	DefaultProbeTimeout = 10 * time.Second

	maxDiagnostic = 2048
)

// Options configures the transcoder.
type Options struct {
	FFmpegPath   string
	FFprobePath  string
	ProbeTimeout time.Duration
	// AudioCodec and VideoCodec override ffmpeg's per-container defaults.
	AudioCodec string
	VideoCodec string
}

// Params are per-request encoder settings. Empty fields fall back to the
// configured defaults.
type Params struct {
	AudioCodec   string
	VideoCodec   string
	AudioBitrate string
}

// Transcoder runs ffmpeg conversions and ffprobe inspections.
type Transcoder struct {
	catalog      *formats.Catalog
	ffmpeg       string
	ffprobe      string
	probeTimeout time.Duration
	defaults     Params

	processes map[string]*exec.Cmd
	processMu sync.Mutex

	lookPath func(string) (string, error)
}

// New creates a new Transcoder instance.
func New(catalog *formats.Catalog, opts Options) *Transcoder {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = "ffprobe"
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}

	return &Transcoder{
		catalog:      catalog,
		ffmpeg:       opts.FFmpegPath,
		ffprobe:      opts.FFprobePath,
		probeTimeout: opts.ProbeTimeout,
		defaults:     Params{AudioCodec: opts.AudioCodec, VideoCodec: opts.VideoCodec},
		processes:    make(map[string]*exec.Cmd),
		lookPath:     exec.LookPath,
	}
}

// Name implements the capability registry contract.
func (t *Transcoder) Name() string { return BackendName }

// Available reports whether ffmpeg can be found.
func (t *Transcoder) Available() bool {
	_, err := t.lookPath(t.ffmpeg)
	return err == nil
}

// ProbeAvailable reports whether ffprobe can be found.
func (t *Transcoder) ProbeAvailable() bool {
	_, err := t.lookPath(t.ffprobe)
	return err == nil
}

// DefaultAudioCodec returns the audio codec used when an audio source is
// written into a video container.
func DefaultAudioCodec(containerExt string) string {
	if formats.Normalize(containerExt) == "webm" {
		return "libopus"
	}
	return "aac"
}

// BuildArgs returns the ffmpeg arguments that convert src into dst.
func (t *Transcoder) BuildArgs(src, dst string, p Params) ([]string, error) {
	srcExt, dstExt := formats.ExtOf(src), formats.ExtOf(dst)
	srcCat, dstCat := t.catalog.CategoryOf(srcExt), t.catalog.CategoryOf(dstExt)

	p = t.withDefaults(p)
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", src}

	switch {
	case dstCat == formats.CategoryAudio && (srcCat == formats.CategoryAudio || srcCat == formats.CategoryVideo):
		args = append(args, "-vn")
		if p.AudioCodec != "" {
			args = append(args, "-c:a", p.AudioCodec)
		}
	case dstCat == formats.CategoryVideo && srcCat == formats.CategoryAudio:
		codec := p.AudioCodec
		if codec == "" {
			codec = DefaultAudioCodec(dstExt)
		}
		args = append(args, "-map", "0:a", "-c:a", codec)
	case dstCat == formats.CategoryVideo && srcCat == formats.CategoryVideo:
		if p.VideoCodec != "" {
			args = append(args, "-c:v", p.VideoCodec)
		}
		if p.AudioCodec != "" {
			args = append(args, "-c:a", p.AudioCodec)
		}
	default:
		return nil, failure.New(failure.KindUnsupportedConversion, "ffmpeg cannot convert %s to %s", srcExt, dstExt)
	}

	if p.AudioBitrate != "" {
		args = append(args, "-b:a", p.AudioBitrate)
	}
	// mp4-family outputs are written with the index up front
	switch dstExt {
	case "mp4", "m4a", "m4v", "mov":
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, dst), nil
}

func (t *Transcoder) withDefaults(p Params) Params {
	if p.AudioCodec == "" {
		p.AudioCodec = t.defaults.AudioCodec
	}
	if p.VideoCodec == "" {
		p.VideoCodec = t.defaults.VideoCodec
	}
	return p
}

// Convert transcodes src into dst.
func (t *Transcoder) Convert(ctx context.Context, src, dst string, p Params) error {
	args, err := t.BuildArgs(src, dst, p)
	if err != nil {
		return err
	}
	bin, err := t.lookPath(t.ffmpeg)
	if err != nil {
		return failure.Wrap(failure.KindBackendUnavailable, err, "ffmpeg not found")
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if logging.IsDebugEnabled() {
		trace := logging.NewLineWriter(logging.LevelDebug, "ffmpeg "+filepath.Base(dst))
		defer trace.Close()
		cmd.Stderr = io.MultiWriter(&stderr, trace)
	}

	t.processMu.Lock()
	t.processes[dst] = cmd
	t.processMu.Unlock()

	defer func() {
		t.processMu.Lock()
		delete(t.processes, dst)
		t.processMu.Unlock()
	}()

	start := time.Now()
	logging.Debug("ffmpeg %s", strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		diag := diagnostic(stderr.String())
		logging.Error("FFmpeg failed for %s: %s", filepath.Base(src), diag)
		return failure.Wrap(failure.KindBackendExecutionFailed, err, "ffmpeg: %s", diag)
	}

	logging.Debug("ffmpeg converted %s in %v", filepath.Base(src), time.Since(start))
	return nil
}

// Stream is one ffprobe stream entry.
type Stream struct {
	Index     int    `json:"index"`
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// Info contains container and stream information.
type Info struct {
	FormatName string   `json:"formatName"`
	Duration   float64  `json:"duration"`
	Streams    []Stream `json:"streams"`
}

// HasStream reports whether a stream of the given type exists.
func (i *Info) HasStream(codecType string) bool {
	for _, s := range i.Streams {
		if s.CodecType == codecType {
			return true
		}
	}
	return false
}

type probeOutput struct {
	Streams []Stream `json:"streams"`
	Format  struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// Probe inspects a media file with ffprobe, bounded by the probe timeout.
func (t *Transcoder) Probe(ctx context.Context, path string) (*Info, error) {
	bin, err := t.lookPath(t.ffprobe)
	if err != nil {
		return nil, failure.Wrap(failure.KindBackendUnavailable, err, "ffprobe not found")
	}

	ctx, cancel := context.WithTimeout(ctx, t.probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("ffprobe timed out after %v", t.probeTimeout)
		}
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, diagnostic(stderr.String()))
	}

	return parseProbe(stdout.Bytes())
}

func parseProbe(data []byte) (*Info, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &Info{
		FormatName: out.Format.FormatName,
		Streams:    out.Streams,
	}
	if out.Format.Duration != "" {
		info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	}
	return info, nil
}

// diagnostic trims ffmpeg's stderr to its last lines.
func diagnostic(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if len(stderr) > maxDiagnostic {
		stderr = "..." + stderr[len(stderr)-maxDiagnostic:]
	}
	if stderr == "" {
		return "no output"
	}
	return stderr
}

// Cleanup stops all active ffmpeg processes.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()

	for path, cmd := range t.processes {
		if cmd.Process != nil {
			logging.Info("Killing ffmpeg process writing %s", path)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill ffmpeg process for %s: %v", path, err)
			}
		}
	}
}

// Active returns the number of running ffmpeg processes.
func (t *Transcoder) Active() int {
	t.processMu.Lock()
	defer t.processMu.Unlock()
	return len(t.processes)
}
