package middlewares

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

var (
	lifeSpanSafetyMargin = 1 * time.Second
	minRefreshInterval   = 5 * time.Second

	ErrRefresherClosed = errors.New("token refresher closed")
)

type tokenInfo struct {
	Token string
	Error error
}

// TokenRefresher keeps a short-lived token fresh in a background goroutine
// and hands the current one to every caller of Get.
type TokenRefresher struct {
	accessToken chan tokenInfo
	done        chan struct{}
	closeOnce   sync.Once
	logger      *slog.Logger
	authorize   AuthorizeFunc

	Schema string
}

// AuthorizeFunc fetches a new token and reports how long it stays valid.
type AuthorizeFunc func() (token string, lifeSpan time.Duration, err error)

func NewTokenRefresher(schema string, fn AuthorizeFunc, logger *slog.Logger) *TokenRefresher {
	if logger == nil {
		logger = slog.Default()
	}

	tr := &TokenRefresher{
		accessToken: make(chan tokenInfo),
		done:        make(chan struct{}),
		logger:      logger,
		authorize:   fn,

		Schema: schema,
	}

	go tr.run()

	return tr
}

func (tr *TokenRefresher) refresh() (tokenInfo, <-chan time.Time) {
	token, lifeSpan, err := tr.authorize()
	if err != nil {
		tr.logger.Error("Could not retrieve access token", "Error", err)
	}

	wait := lifeSpan - lifeSpanSafetyMargin
	if err != nil || wait < minRefreshInterval {
		wait = minRefreshInterval
	}

	return tokenInfo{Token: token, Error: err}, time.After(wait)
}

func (tr *TokenRefresher) run() {
	info, expired := tr.refresh()

	for {
		select {
		case <-tr.done:
			return
		case tr.accessToken <- info:
		case <-expired:
			info, expired = tr.refresh()
		}
	}
}

// Get returns the current token.
func (tr *TokenRefresher) Get() (string, error) {
	select {
	case <-tr.done:
		return "", ErrRefresherClosed
	default:
	}

	select {
	case info := <-tr.accessToken:
		return info.Token, info.Error
	case <-tr.done:
		return "", ErrRefresherClosed
	}
}

// Close stops the background refresh.
func (tr *TokenRefresher) Close() {
	tr.closeOnce.Do(func() { close(tr.done) })
}

// AuthorizeMiddleware sets the Authorization header from tr unless the
// request already carries one.
func AuthorizeMiddleware(tr *TokenRefresher) Middleware {
	return func(next Handler) Handler {
		return func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("Authorization") != "" {
				return next(req)
			}

			token, err := tr.Get()
			if err != nil {
				tr.logger.Warn("No token will be added to the request", "URL", req.URL, "Method", req.Method, "Error", err)
			} else {
				req.Header.Set("Authorization", fmt.Sprintf("%s %s", tr.Schema, token))
			}

			return next(req)
		}
	}
}
