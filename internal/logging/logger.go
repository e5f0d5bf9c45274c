// Package logging builds the process logger and the per-request event line.
package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"
)

// Environment is stamped on every request event.
type Environment struct {
	Service string
	Version string
	Commit  string
	Region  string
	NodeID  string
}

const (
	FormatJSON = "json"
	FormatText = "text"

	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 64
	redacted        = "[redacted]"
)

// Keys whose values never reach a log line.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"password_hash": {},
	"authorization": {},
}

// New returns a logger writing to w. level is one of debug|info|warn|error,
// format one of json|text. Empty values mean info and json.
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case FormatText:
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

type ctxKey struct{}

type requestFields struct {
	mu     sync.Mutex
	fields map[string]any
}

// Middleware writes one "http_request" line per request. Handlers enrich it
// through AddField. 5xx responses log at error, 4xx at warn.
func Middleware(logger *slog.Logger, env Environment) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := requestID(r.Header.Get(requestIDHeader))
			w.Header().Set(requestIDHeader, reqID)

			fields := &requestFields{fields: map[string]any{}}
			r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, fields))

			ww := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			var panicVal any
			func() {
				defer func() {
					if recovered := recover(); recovered != nil {
						panicVal = recovered
						if !ww.wroteHeader {
							http.Error(ww, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
						}
						ww.statusCode = http.StatusInternalServerError
						AddField(r.Context(), "panic", true)
						AddField(r.Context(), "stack", string(debug.Stack()))
					}
				}()
				next.ServeHTTP(ww, r)
			}()

			attrs := []any{
				slog.String("service", env.Service),
				slog.String("version", env.Version),
				slog.String("commit", env.Commit),
				slog.String("region", env.Region),
				slog.String("node_id", env.NodeID),
				slog.String("request_id", reqID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
				slog.Int("status_code", ww.statusCode),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.Int("response_size", ww.bytes),
				slog.String("outcome", outcome(ww.statusCode)),
			}
			attrs = append(attrs, fields.attrs()...)
			logger.Log(r.Context(), levelFor(ww.statusCode), "http_request", slog.Group("event", attrs...))

			if panicVal != nil {
				panic(panicVal)
			}
		})
	}
}

// AddField attaches key to the current request's log line. Values under
// credential keys are replaced before they are stored.
func AddField(ctx context.Context, key string, value any) {
	fields, ok := ctx.Value(ctxKey{}).(*requestFields)
	if !ok || fields == nil {
		return
	}
	if _, secret := sensitiveKeys[strings.ToLower(key)]; secret {
		value = redacted
	}
	fields.mu.Lock()
	defer fields.mu.Unlock()
	fields.fields[key] = value
}

func (f *requestFields) attrs() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.fields))
	for k := range f.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, slog.Any(k, f.fields[k]))
	}
	return out
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func outcome(status int) string {
	switch {
	case status >= 500:
		return "error"
	case status >= 400:
		return "rejected"
	default:
		return "success"
	}
}

// requestID keeps a caller-supplied id when it is short and printable.
func requestID(supplied string) string {
	supplied = strings.TrimSpace(supplied)
	if supplied != "" && len(supplied) <= maxRequestIDLen && strings.IndexFunc(supplied, func(r rune) bool {
		return r < 0x21 || r > 0x7e
	}) < 0 {
		return supplied
	}
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "req_unknown"
	}
	return "req_" + hex.EncodeToString(buf)
}

type statusWriter struct {
	http.ResponseWriter
	statusCode  int
	bytes       int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.statusCode = statusCode
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
