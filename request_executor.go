package ghget

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/liviudnicoara/ghget/middlewares"
)

var (
	defaultTimeout      = 30 * time.Second
	defaultMinWaitRetry = 500 * time.Millisecond
	defaultMaxWaitRetry = 10 * time.Second

	defaultRequestExecutor atomic.Value
)

func init() {
	defaultRequestExecutor.Store(newDefaultRequestExecutor())
}

// Default returns the default RequestExecutor.
func Default() *RequestExecutor { return defaultRequestExecutor.Load().(*RequestExecutor) }

// SetDefault makes re the default RequestExecutor.
func SetDefault(re *RequestExecutor) {
	defaultRequestExecutor.Store(re)
}

// RequestExecutor is the transport used by a Dispatcher: an http.Client
// behind a chain of middlewares.
type RequestExecutor struct {
	client       http.Client
	middlewares  []middlewares.Middleware
	pipeline     middlewares.Handler
	retryEnabled bool
	authEnabled  bool

	MinWaitRetry time.Duration
	MaxWaitRetry time.Duration

	Logger *slog.Logger
}

func newDefaultRequestExecutor() *RequestExecutor {
	client := http.Client{Timeout: defaultTimeout}
	return NewRequestExecutor(client)
}

func NewRequestExecutor(client http.Client) *RequestExecutor {
	re := &RequestExecutor{
		client: client,

		MinWaitRetry: defaultMinWaitRetry,
		MaxWaitRetry: defaultMaxWaitRetry,
		Logger:       slog.Default(),
	}

	re.pipeline = re.do()

	return re
}

func (re *RequestExecutor) WithTimeout(timeout time.Duration) *RequestExecutor {
	re.client.Timeout = timeout
	return re
}

func (re *RequestExecutor) WithMiddleware(handler middlewares.Middleware) *RequestExecutor {
	return re.WithMiddlewares(handler)
}

func (re *RequestExecutor) WithMiddlewares(handlers ...middlewares.Middleware) *RequestExecutor {
	re.middlewares = append(re.middlewares, handlers...)
	re.pipeline = middlewares.Chain(re.do(), re.middlewares...)
	return re
}

func (re *RequestExecutor) AddLogging(logger *slog.Logger) *RequestExecutor {
	re.Logger = logger
	return re.WithMiddleware(middlewares.LoggerMiddleware(logger))
}

func (re *RequestExecutor) AddPerformanceMonitor(threshold time.Duration, logger *slog.Logger) *RequestExecutor {
	return re.WithMiddleware(middlewares.PerformanceMiddleware(threshold, logger))
}

func (re *RequestExecutor) WithExponentialRetry(retry int) *RequestExecutor {
	return re.withRetry(retry, middlewares.ExponentialBackoffTime)
}

func (re *RequestExecutor) WithLinearRetry(retry int) *RequestExecutor {
	return re.withRetry(retry, middlewares.LinearJitterBackoffTime)
}

func (re *RequestExecutor) withRetry(retry int, backoff middlewares.BackoffTime) *RequestExecutor {
	if re.retryEnabled || retry <= 0 {
		return re
	}

	rh := middlewares.RetryHandler{
		MinWait:    re.MinWaitRetry,
		MaxWait:    re.MaxWaitRetry,
		RetryCount: retry,
		Backoff:    backoff,
	}

	re.WithMiddleware(middlewares.RetryMiddleware(rh))
	re.retryEnabled = true

	return re
}

// WithAuthorization installs a token refresher for short-lived credentials
// such as GitHub App installation tokens. The returned refresher should be
// closed when the executor is no longer used.
func (re *RequestExecutor) WithAuthorization(schema string, authorize middlewares.AuthorizeFunc) (*RequestExecutor, *middlewares.TokenRefresher) {
	if re.authEnabled {
		return re, nil
	}

	tr := middlewares.NewTokenRefresher(schema, authorize, re.Logger)

	re.WithMiddleware(middlewares.AuthorizeMiddleware(tr))
	re.authEnabled = true

	return re, tr
}

func (re *RequestExecutor) do() middlewares.Handler {
	return func(req *http.Request) (*http.Response, error) {
		return re.client.Do(req)
	}
}
