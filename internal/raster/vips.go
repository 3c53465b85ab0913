package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"path/filepath"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"uniconverter/internal/failure"
	"uniconverter/internal/logging"
)

// VipsBackendName is the capability name of the libvips backend.
const VipsBackendName = "vips"

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// vipsLogLevel maps our log level to the lowest vips level worth forwarding.
func vipsLogLevel(level logging.LogLevel) vips.LogLevel {
	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelInfo:
		return vips.LogLevelWarning
	case logging.LevelWarn:
		return vips.LogLevelError
	case logging.LevelError:
		return vips.LogLevelCritical
	default:
		return vips.LogLevelWarning
	}
}

func vipsLogHandler(domain string, level vips.LogLevel, msg string) {
	switch level {
	case vips.LogLevelError, vips.LogLevelCritical:
		logging.Error("[%s] %s", domain, msg)
	case vips.LogLevelWarning:
		logging.Warn("[%s] %s", domain, msg)
	default:
		logging.Debug("[%s] %s", domain, msg)
	}
}

// InitVips initializes the libvips library
// This should be called once at startup
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Configure vips logging BEFORE Startup() to respect LOG_LEVEL
	vips.LoggingSettings(vipsLogHandler, vipsLogLevel(logging.GetLevel()))

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// VipsBackend exposes libvips to the capability registry.
type VipsBackend struct{}

// Name implements the capability registry contract.
func (VipsBackend) Name() string { return VipsBackendName }

// Available reports whether InitVips has run.
func (VipsBackend) Available() bool { return IsVipsAvailable() }

func decodeWithVips(path string) (image.Image, error) {
	if !IsVipsAvailable() {
		return nil, failure.New(failure.KindBackendUnavailable, "libvips is required to decode %s", filepath.Ext(path))
	}

	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	logging.Debug("Vips loaded %s: %dx%d", filepath.Base(path), ref.Width(), ref.Height())

	pngBytes, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}
	return png.Decode(bytes.NewReader(pngBytes))
}

func encodeWithVips(img image.Image, ext string, quality int) ([]byte, error) {
	if !IsVipsAvailable() {
		return nil, failure.New(failure.KindBackendUnavailable, "libvips is required to encode %s", ext)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	ref, err := vips.NewImageFromBuffer(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	var out []byte
	switch ext {
	case "webp":
		params := vips.NewWebpExportParams()
		params.Quality = quality
		out, _, err = ref.ExportWebp(params)
	case "avif":
		params := vips.NewAvifExportParams()
		params.Quality = quality
		out, _, err = ref.ExportAvif(params)
	case "heic":
		params := vips.NewHeifExportParams()
		params.Quality = quality
		out, _, err = ref.ExportHeif(params)
	default:
		return nil, fmt.Errorf("vips: no encoder for %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("vips export %s failed: %w", ext, err)
	}
	return out, nil
}
