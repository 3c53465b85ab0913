package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"uniconverter/internal/logging"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	DataDir         string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool
	ArtifactTTL     time.Duration
	SweepInterval   time.Duration
	ProbeTimeout    time.Duration
	Workers         int
	MaxUploadBytes  int64
	MemoryLimit     int64
	MemoryRatio     float64
	ProfileFile     string
	Profile         Profile

	// Derived paths
	ArtifactDir  string
	DatabasePath string
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	dataDir := getEnv("DATA_DIR", "/data")
	port := getEnv("PORT", "8080")
	metricsPort := getEnv("METRICS_PORT", "9090")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)
	profileFile := getEnv("PROFILE_FILE", "")

	logging.Info("  DATA_DIR:            %s", dataDir)
	logging.Info("  PORT:                %s", port)
	logging.Info("  METRICS_PORT:        %s", metricsPort)
	logging.Info("  METRICS_ENABLED:     %v", metricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	config := &Config{
		Port:            port,
		MetricsPort:     metricsPort,
		MetricsEnabled:  metricsEnabled,
		LogHealthChecks: logHealthChecks,
		ArtifactTTL:     getEnvDuration("ARTIFACT_TTL", time.Hour),
		SweepInterval:   getEnvDuration("SWEEP_INTERVAL", 10*time.Minute),
		ProbeTimeout:    getEnvDuration("PROBE_TIMEOUT", 10*time.Second),
		Workers:         getEnvInt("CONVERT_WORKERS", 0),
		MaxUploadBytes:  int64(getEnvInt("MAX_UPLOAD_MB", 512)) << 20,
		MemoryLimit:     getEnvInt64("MEMORY_LIMIT", 0),
		MemoryRatio:     getEnvFloat("MEMORY_RATIO", 0.75),
		ProfileFile:     profileFile,
	}

	logging.Info("  ARTIFACT_TTL:        %v", config.ArtifactTTL)
	logging.Info("  SWEEP_INTERVAL:      %v", config.SweepInterval)
	logging.Info("  PROBE_TIMEOUT:       %v", config.ProbeTimeout)
	if config.Workers > 0 {
		logging.Info("  CONVERT_WORKERS:     %d", config.Workers)
	} else {
		logging.Info("  CONVERT_WORKERS:     auto")
	}
	logging.Info("  MAX_UPLOAD_MB:       %d", config.MaxUploadBytes>>20)
	if config.MemoryLimit > 0 {
		logging.Info("  MEMORY_LIMIT:        %d (ratio %.2f)", config.MemoryLimit, config.MemoryRatio)
	}

	if profileFile != "" {
		logging.Info("  PROFILE_FILE:        %s", profileFile)
		profile, err := LoadProfile(profileFile)
		if err != nil {
			return nil, fmt.Errorf("profile error: %w", err)
		}
		config.Profile = profile
		logProfile(profile)
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	dataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	logging.Info("  Data directory (absolute): %s", dataDir)

	config.DataDir = dataDir
	config.ArtifactDir = filepath.Join(dataDir, "artifacts")
	config.DatabasePath = filepath.Join(dataDir, "ledger.db")

	if err := ensureDirectory(dataDir, "data"); err != nil {
		return nil, fmt.Errorf("data directory error: %w", err)
	}
	if err := ensureDirectory(config.ArtifactDir, "artifact"); err != nil {
		return nil, fmt.Errorf("artifact directory error: %w", err)
	}

	logging.Debug("  Testing artifact directory write access...")
	if err := testWriteAccess(config.ArtifactDir); err != nil {
		return nil, fmt.Errorf("artifact directory is not writable: %w", err)
	}
	logging.Info("  [OK] Artifact directory is writable")

	return config, nil
}

func logProfile(p Profile) {
	if len(p.IconSizes) > 0 {
		logging.Info("    icon_sizes:        %v", p.IconSizes)
	}
	if p.JPEGQuality > 0 {
		logging.Info("    jpeg_quality:      %d", p.JPEGQuality)
	}
	if p.PDFDPI > 0 {
		logging.Info("    pdf_dpi:           %v", p.PDFDPI)
	}
	if p.Vector.Colors > 0 || p.Vector.MinArea > 0 {
		logging.Info("    vector:            colors=%d min_area=%d", p.Vector.Colors, p.Vector.MinArea)
	}
	if p.AudioCodec != "" || p.VideoCodec != "" {
		logging.Info("    codecs:            audio=%q video=%q", p.AudioCodec, p.VideoCodec)
	}
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs ledger initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("LEDGER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Artifact ledger initialized in %v", duration)
}

// LogBackends logs the availability of every registered conversion
// backend. status maps backend names to availability.
func LogBackends(status map[string]bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CONVERSION BACKENDS")
	logging.Info("------------------------------------------------------------")

	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		logging.Info("    %-10s %s", name+":", enabledString(status[name]))
	}

	for _, tool := range externalTools {
		available, ok := status[tool.backend]
		switch {
		case !ok:
		case !available:
			logging.Warn("  %s not found: %s", tool.bin, tool.missing)
		default:
			if version, err := toolVersion(tool.bin, tool.versionArg); err != nil {
				logging.Warn("  %s check failed: %v", tool.bin, err)
			} else {
				logging.Info("    %-10s %s", tool.bin+":", version)
			}
		}
	}
}

// externalTool is a command-line program a backend shells out to.
type externalTool struct {
	backend    string
	bin        string
	versionArg string
	missing    string
}

var externalTools = []externalTool{
	{"ffmpeg", "ffmpeg", "-version", "audio and video conversions will fail"},
	{"exiftool", "exiftool", "-ver", "metadata reads fail and stripping is skipped"},
}

// LogSweeperInit logs the artifact sweep schedule
func LogSweeperInit(ttl, interval time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("ARTIFACT SWEEP")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Artifacts expire after %v, swept every %v", ttl, interval)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				if route.Name != "" {
					logging.Debug("    %-6s %-24s (%s)", route.Method, route.Path, route.Name)
				} else {
					logging.Debug("    %-6s %s", route.Method, route.Path)
				}
			}
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")
	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}
	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	MaxUploadBytes  int64
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Upload:        POST http://0.0.0.0:%s/api/upload (max %d MiB)", config.Port, config.MaxUploadBytes>>20)
	logging.Info("    Convert:       POST http://0.0.0.0:%s/api/convert", config.Port)
	logging.Info("    Merge:         POST http://0.0.0.0:%s/api/merge", config.Port)
	logging.Info("    Formats:       GET  http://0.0.0.0:%s/api/formats", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	fmt.Println(`
------------------------------------------------------------
   uniconverter  -  any format in, any format out
------------------------------------------------------------`)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

// toolVersion runs "<name> <versionArg>" and returns the first line of its
// output.
func toolVersion(name, versionArg string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH", name)
	}
	logging.Debug("  %s path: %s", name, path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, versionArg).Output()
	if err != nil {
		return "", fmt.Errorf("failed to get %s version: %w", name, err)
	}

	first, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(first), nil
}
