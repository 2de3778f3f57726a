package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// Recorder captures the status and size of a response.
type Recorder struct {
	http.ResponseWriter
	Status int
	Bytes  int
}

// NewRecorder wraps w.
func NewRecorder(w http.ResponseWriter) *Recorder {
	return &Recorder{ResponseWriter: w}
}

func (r *Recorder) WriteHeader(code int) {
	if r.Status == 0 {
		r.Status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *Recorder) Write(b []byte) (int, error) {
	if r.Status == 0 {
		r.Status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.Bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *Recorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// LogOptions tunes [RequestLogger].
type LogOptions struct {
	Logger    *slog.Logger
	SkipPaths []string
	// RequestID extracts a correlation id, e.g. chi's middleware.GetReqID.
	RequestID func(r *http.Request) string
}

// RequestLogger logs one line per request. 5xx responses log at error
// level.
func RequestLogger(opts LogOptions) func(http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := NewRecorder(w)
			next.ServeHTTP(rec, r)
			if rec.Status == 0 {
				rec.Status = http.StatusOK
			}

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.Status),
				slog.Int64("ms", time.Since(start).Milliseconds()),
				slog.Int("bytes", rec.Bytes),
			}
			if opts.RequestID != nil {
				if id := opts.RequestID(r); id != "" {
					attrs = append(attrs, slog.String("request_id", id))
				}
			}

			if rec.Status >= 500 {
				logger.ErrorContext(r.Context(), "request failed", attrs...)
				return
			}
			logger.InfoContext(r.Context(), "request completed", attrs...)
		})
	}
}
