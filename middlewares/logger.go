package middlewares

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// LoggerMiddleware logs every request and its outcome under a fresh request id.
// The id is also placed in the request context, see RequestID.
func LoggerMiddleware(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(r *http.Request) (*http.Response, error) {
			id := RequestID(r.Context())
			if id == "" {
				id = uuid.NewString()
				r = r.WithContext(WithRequestID(r.Context(), id))
			}

			logger.Info("Executing request", "RequestID", id, "URL", r.URL, "Method", r.Method)

			response, err := next(r)

			if err != nil {
				logger.Error("Error on request", "RequestID", id, "URL", r.URL, "Error", err.Error())
				return response, err
			}

			if response != nil {
				logger.Debug("Received response", "RequestID", id, "URL", r.URL, "StatusCode", response.StatusCode)
			}

			return response, err
		}
	}
}
