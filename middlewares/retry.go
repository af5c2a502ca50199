package middlewares

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"
)

// redirectsErrorRe, schemeErrorRe, and notTrustedErrorRe match transport errors that retrying cannot fix.
var (
	redirectsErrorRe  = regexp.MustCompile(`stopped after \d+ redirects\z`)
	schemeErrorRe     = regexp.MustCompile(`unsupported protocol scheme`)
	notTrustedErrorRe = regexp.MustCompile(`certificate is not trusted`)
)

// RetryHandler defines parameters for retrying HTTP requests.
type RetryHandler struct {
	MinWait    time.Duration
	MaxWait    time.Duration
	RetryCount int
	Backoff    BackoffTime
}

// shouldRetry reports whether the attempt is worth repeating. A non-nil
// error means the attempt failed at the transport level and must not be retried.
func (rh *RetryHandler) shouldRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		drain(resp)
		return false, ctx.Err()
	}

	if err != nil {
		var v *url.Error
		if errors.As(err, &v) {
			if redirectsErrorRe.MatchString(v.Error()) ||
				schemeErrorRe.MatchString(v.Error()) ||
				notTrustedErrorRe.MatchString(v.Error()) {
				return false, err
			}

			var unknownAuthority x509.UnknownAuthorityError
			if errors.As(v.Err, &unknownAuthority) {
				return false, err
			}
		}

		return true, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return true, nil
	}

	if resp.StatusCode == 0 || (resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented) {
		return true, nil
	}

	return false, nil
}

// RetryMiddleware retries requests based on the RetryHandler configuration.
// When the retries run out on an unsuccessful status code the last response
// is returned as is, so callers still see the upstream status.
func RetryMiddleware(rh RetryHandler) Middleware {
	return func(next Handler) Handler {
		return func(req *http.Request) (*http.Response, error) {
			var resp *http.Response
			var retry bool
			var err error
			var attempt int

			for ; ; attempt++ {
				resp, err = next(req)

				retry, err = rh.shouldRetry(req.Context(), resp, err)

				if !retry || rh.RetryCount-attempt <= 0 {
					break
				}

				wait := rh.Backoff(attempt, rh.MinWait, rh.MaxWait, resp)
				drain(resp)

				timer := time.NewTimer(wait)
				select {
				case <-req.Context().Done():
					timer.Stop()
					return nil, req.Context().Err()
				case <-timer.C:
				}
			}

			if err == nil {
				return resp, nil
			}

			if !retry {
				return nil, err
			}

			return nil, fmt.Errorf("%s %s giving up after %d attempt(s): %w",
				req.Method, req.URL, attempt+1, err)
		}
	}
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

// BackoffTime calculates how long to wait between retries.
type BackoffTime func(retry int, min, max time.Duration, resp *http.Response) time.Duration

// ExponentialBackoffTime will perform exponential backoff based on the retry
// The time will be between minimum and maximum durations.
// If response contains Retry-After header when a http.StatusTooManyRequests is found in the resp parameter,
// it will return the number of seconds set by the server.
func ExponentialBackoffTime(retry int, min, max time.Duration, resp *http.Response) time.Duration {
	if resp != nil {
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			if s, ok := resp.Header["Retry-After"]; ok {
				if sleep, err := strconv.ParseInt(s[0], 10, 64); err == nil {
					return time.Second * time.Duration(sleep)
				}
			}
		}
	}

	wait := math.Pow(2, float64(retry)) * float64(min)
	duration := time.Duration(int64(wait))
	if duration > max {
		duration = max
	}

	return duration
}

// LinearJitterBackoffTime performs linear backoff based on the retry count with jitter.
// min and max here are *not* absolute values. The number to be multiplied by
// the attempt number will be chosen at random from between them, thus they are
// bounding the jitter.
//
// Examples:
// No jitter: min = max = 1s
// Small jitter: min = 700ms max = 1300 ms
// Big jitter: min = 100 ms max = 10s
func LinearJitterBackoffTime(retry int, min, max time.Duration, resp *http.Response) time.Duration {
	if retry == 0 {
		retry = 1
	}

	if max <= min {
		return min * time.Duration(retry)
	}

	rnd := rand.New(rand.NewSource(int64(time.Now().Nanosecond())))

	jitter := rnd.Float64() * float64(max-min)
	jitterMin := int64(jitter) + int64(min)
	return time.Duration(jitterMin * int64(retry))
}
