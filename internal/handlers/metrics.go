package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"uniconverter/internal/logging"
)

// scrapeTimeout bounds a single /metrics scrape.
const scrapeTimeout = 10 * time.Second

// promLogger sends promhttp gathering errors to the application log.
type promLogger struct{}

func (promLogger) Println(v ...interface{}) {
	logging.Warn("metrics: %s", fmt.Sprint(v...))
}

// MetricsHandler returns the Prometheus handler for the metrics port.
// Gathering errors are logged and the remaining series are still served.
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			ErrorLog:      promLogger{},
			ErrorHandling: promhttp.ContinueOnError,
			Timeout:       scrapeTimeout,
		}),
	)
}
