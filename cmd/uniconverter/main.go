package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"uniconverter/internal/artifacts"
	"uniconverter/internal/containers"
	"uniconverter/internal/convert"
	"uniconverter/internal/database"
	"uniconverter/internal/filesystem"
	"uniconverter/internal/formats"
	"uniconverter/internal/handlers"
	"uniconverter/internal/logging"
	"uniconverter/internal/memory"
	"uniconverter/internal/metadata"
	"uniconverter/internal/metrics"
	"uniconverter/internal/middleware"
	"uniconverter/internal/polyglot"
	"uniconverter/internal/raster"
	"uniconverter/internal/startup"
	"uniconverter/internal/transcoder"
	"uniconverter/internal/vector"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	memory.SetLimit(config.MemoryLimit, config.MemoryRatio)
	gate := memory.NewGate(memory.DefaultConfig())
	gate.Start()

	metrics.InitializeMetrics()
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"data":      config.DataDir,
		"artifacts": config.ArtifactDir,
	}))

	ctx := context.Background()

	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	catalog := formats.Default()
	store, err := artifacts.NewStore(config.ArtifactDir, catalog, db)
	if err != nil {
		startup.LogFatal("Failed to open artifact store: %v", err)
	}

	if err := raster.InitVips(); err != nil {
		logging.Warn("libvips unavailable, webp/avif/heic encoding disabled: %v", err)
	}

	profile := config.Profile
	registry, trans := convert.NewDefaultRegistry(catalog, convert.BackendOptions{
		Raster: raster.Options{Quality: profile.JPEGQuality, IconSizes: profile.IconSizes},
		Vector: vector.Options{Colors: profile.Vector.Colors, MinArea: profile.Vector.MinArea},
		Transcoder: transcoder.Options{
			ProbeTimeout: config.ProbeTimeout,
			AudioCodec:   profile.AudioCodec,
			VideoCodec:   profile.VideoCodec,
		},
		DPI: profile.PDFDPI,
	})
	startup.LogBackends(registry.Status())

	dispatcher := convert.NewDispatcher(catalog, registry, store, convert.Options{
		Workers: config.Workers,
		Gate:    gate,
	})
	merger := polyglot.NewMerger(dispatcher, store, containers.New(trans))
	merger.SetGate(gate)

	var meta metadata.Tool
	if b, ok := registry.Lookup(metadata.BackendName); ok {
		meta, _ = b.(metadata.Tool)
	}

	h := handlers.New(handlers.Config{
		Dispatcher:     dispatcher,
		Merger:         merger,
		Metadata:       meta,
		Stats:          db,
		MaxUploadBytes: config.MaxUploadBytes,
	})

	router := mux.NewRouter()
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	h.Register(router)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(router)

	compress, err := middleware.Compression(middleware.DefaultCompressionConfig())
	if err != nil {
		startup.LogFatal("Failed to configure compression: %v", err)
	}
	handler := compress(loggedHandler)

	collector := metrics.NewCollector(db, time.Minute)
	collector.Start()

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config.MetricsPort, h)
	}

	startup.LogSweeperInit(config.ArtifactTTL, config.SweepInterval)
	stopSweep := startSweeper(store, config.ArtifactTTL, config.SweepInterval)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0, // conversions of large media can take minutes
		IdleTimeout:       60 * time.Second,
	}

	go handleShutdown(shutdownDeps{
		srv:        srv,
		metricsSrv: metricsSrv,
		collector:  collector,
		gate:       gate,
		stopSweep:  stopSweep,
		trans:      trans,
		db:         db,
	})

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		MaxUploadBytes:  config.MaxUploadBytes,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
}

func startMetricsServer(port string, h *handlers.Handlers) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", h.MetricsHandler())
	metricsMux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

// startSweeper removes artifacts older than ttl every interval. The
// returned function stops it.
func startSweeper(store *artifacts.Store, ttl, interval time.Duration) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sweepOnce(store, ttl)
			case <-stop:
				return
			}
		}
	}()
	return func() { close(stop) }
}

func sweepOnce(store *artifacts.Store, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := store.Sweep(ctx, time.Now().Add(-ttl))
	if n > 0 {
		metrics.ArtifactsSweptTotal.Add(float64(n))
		logging.Info("Swept %d expired artifacts", n)
	}
	if err != nil {
		logging.Warn("Artifact sweep incomplete: %v", err)
	}
}

type shutdownDeps struct {
	srv        *http.Server
	metricsSrv *http.Server
	collector  *metrics.Collector
	gate       *memory.Gate
	stopSweep  func()
	trans      *transcoder.Transcoder
	db         *database.Database
}

func handleShutdown(d shutdownDeps) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := d.srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping background workers")
	d.stopSweep()
	d.collector.Stop()
	d.gate.Stop()
	startup.LogShutdownStepComplete("Background workers stopped")

	startup.LogShutdownStep("Terminating ffmpeg processes")
	d.trans.Cleanup()
	startup.LogShutdownStepComplete("Transcoder cleanup complete")

	if d.metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := d.metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	raster.ShutdownVips()

	startup.LogShutdownStep("Closing database")
	if err := d.db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	startup.LogShutdownComplete()
	os.Exit(0)
}
