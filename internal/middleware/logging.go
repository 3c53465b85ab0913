package middleware

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"uniconverter/internal/logging"
)

// responseWriter records the status and size of a response.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggingConfig holds configuration for the access log.
type LoggingConfig struct {
	SkipPaths       []string
	LogHealthChecks bool
	// SlowThreshold logs a warning for requests slower than this. Zero
	// disables it.
	SlowThreshold time.Duration
	// Output receives each access log line. Defaults to log.Println.
	Output func(line string)
}

// DefaultLoggingConfig skips /metrics and flags requests over two minutes,
// which for this service means a stuck backend rather than a large file.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:       []string{"/metrics"},
		LogHealthChecks: true,
		SlowThreshold:   2 * time.Minute,
	}
}

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
}

// sanitizeLogField strips control characters from client-supplied fields so
// one request always produces one log line.
func sanitizeLogField(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			b.WriteRune(' ')
		case r == '\t':
			b.WriteRune(r)
		case r < 0x20:
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Logger returns access-log middleware writing W3C Extended Log Format
// lines:
//
//	date time c-ip cs-method cs-uri-stem cs-uri-query sc-status cs-bytes
//	sc-bytes time-taken x-artifact cs(Content-Encoding) cs(User-Agent)
//
// x-artifact is the id of the artifact the response carries, if any.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	output := config.Output
	if output == nil {
		output = func(line string) {
			//nolint:gosec // G706: every client-supplied field passed through sanitizeLogField.
			log.Println(line)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkip(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)
			elapsed := time.Since(start)

			output(accessLine(start.UTC(), r, wrapped, elapsed))
			if config.SlowThreshold > 0 && elapsed > config.SlowThreshold {
				logging.Warn("slow request: %s %s took %v (status %d)",
					sanitizeLogField(r.Method), sanitizeLogField(r.URL.Path), elapsed.Round(time.Millisecond), wrapped.statusCode)
			}
		})
	}
}

func accessLine(at time.Time, r *http.Request, rw *responseWriter, elapsed time.Duration) string {
	requestBytes := "-"
	if r.ContentLength >= 0 {
		requestBytes = strconv.FormatInt(r.ContentLength, 10)
	}

	return fmt.Sprintf("%s %s %s %s %s %s %d %s %d %d %s %s %s",
		at.Format("2006-01-02"),
		at.Format("15:04:05"),
		sanitizeLogField(getClientIP(r)),
		sanitizeLogField(r.Method),
		sanitizeLogField(r.URL.Path),
		orDash(sanitizeLogField(r.URL.RawQuery)),
		rw.statusCode,
		requestBytes,
		rw.bytesWritten,
		elapsed.Milliseconds(),
		orDash(rw.Header().Get("X-Artifact-ID")),
		orDash(rw.Header().Get("Content-Encoding")),
		orDash(escapeW3CField(sanitizeLogField(r.Header.Get("User-Agent")))),
	)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shouldSkip(path string, config LoggingConfig) bool {
	for _, skipPath := range config.SkipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return !config.LogHealthChecks && healthCheckPaths[path]
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// escapeW3CField quotes a field containing whitespace or quotes, doubling
// embedded quotes.
func escapeW3CField(s string) string {
	if strings.ContainsAny(s, " \t\"") {
		return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
	}
	return s
}
