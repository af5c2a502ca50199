package middlewares

import (
	"log/slog"
	"net/http"
	"time"
)

// PerformanceMiddleware warns about requests slower than threshold.
// A non-positive threshold disables the check.
func PerformanceMiddleware(threshold time.Duration, logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		if threshold <= 0 {
			return next
		}

		return func(req *http.Request) (*http.Response, error) {
			start := time.Now()

			resp, err := next(req)

			elapsed := time.Since(start)

			if elapsed > threshold {
				logger.Warn("Slow request",
					"RequestID", RequestID(req.Context()),
					"URL", req.URL,
					"Method", req.Method,
					"Elapsed", elapsed,
					"Threshold", threshold)
			}

			return resp, err
		}
	}
}
