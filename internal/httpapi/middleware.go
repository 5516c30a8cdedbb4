package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	errs   []error
}

func (r *statusRecorder) recordError(err error) {
	r.errs = append(r.errs, err)
}

// recordError attaches err to the request log entry written by logRequests.
// Writers not wrapped by the middleware drop it.
func recordError(w http.ResponseWriter, err error) {
	if recorder, ok := w.(interface{ recordError(error) }); ok {
		recorder.recordError(err)
	}
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(body []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(body)
	r.bytes += n
	return n, err
}

// logRequests writes one entry per request with the errors handlers
// recorded. Server errors are logged at error level, other recorded errors at
// warn, everything else at info; health checks only at debug.
func logRequests(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", recorder.bytes),
			zap.Duration("took", time.Since(started)),
		}
		if len(recorder.errs) > 0 {
			fields = append(fields, zap.Errors("errors", recorder.errs))
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request served", fields...)
		case len(recorder.errs) > 0:
			logger.Warn("request served", fields...)
		case r.URL.Path == "/healthz":
			logger.Debug("request served", fields...)
		default:
			logger.Info("request served", fields...)
		}
	})
}
