package middlewares

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("body")),
	}
}

func sequence(steps ...func() (*http.Response, error)) (Handler, *int) {
	calls := 0
	return func(req *http.Request) (*http.Response, error) {
		step := steps[len(steps)-1]
		if calls < len(steps) {
			step = steps[calls]
		}
		calls++
		return step()
	}, &calls
}

func status(code int) func() (*http.Response, error) {
	return func() (*http.Response, error) { return response(code), nil }
}

func fail(err error) func() (*http.Response, error) {
	return func() (*http.Response, error) { return nil, err }
}

func testRetryHandler(n int) RetryHandler {
	return RetryHandler{
		MinWait:    time.Millisecond,
		MaxWait:    2 * time.Millisecond,
		RetryCount: n,
		Backoff:    ExponentialBackoffTime,
	}
}

func Test_RetryMiddleware(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://example.com/users/octocat", nil)

	t.Run("SuccessAfterServerErrors", func(t *testing.T) {
		// arrange
		next, calls := sequence(status(500), status(502), status(200))

		// act
		resp, err := RetryMiddleware(testRetryHandler(3))(next)(req)

		// assert
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, 3, *calls)
	})

	t.Run("ExhaustedReturnsLastResponse", func(t *testing.T) {
		// arrange
		next, calls := sequence(status(503))

		// act
		resp, err := RetryMiddleware(testRetryHandler(2))(next)(req)

		// assert
		require.NoError(t, err)
		assert.Equal(t, 503, resp.StatusCode)
		assert.Equal(t, 3, *calls)
	})

	t.Run("ClientErrorsAreNotRetried", func(t *testing.T) {
		// arrange
		next, calls := sequence(status(404))

		// act
		resp, err := RetryMiddleware(testRetryHandler(3))(next)(req)

		// assert
		require.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode)
		assert.Equal(t, 1, *calls)
	})

	t.Run("NotImplementedIsNotRetried", func(t *testing.T) {
		// arrange
		next, calls := sequence(status(501))

		// act
		_, err := RetryMiddleware(testRetryHandler(3))(next)(req)

		// assert
		require.NoError(t, err)
		assert.Equal(t, 1, *calls)
	})

	t.Run("NetworkErrorRetriedThenWrapped", func(t *testing.T) {
		// arrange
		netErr := &url.Error{Op: "Get", URL: "http://example.com", Err: errors.New("connection refused")}
		next, calls := sequence(fail(netErr))

		// act
		resp, err := RetryMiddleware(testRetryHandler(1))(next)(req)

		// assert
		assert.Nil(t, resp)
		assert.Equal(t, 2, *calls)
		assert.ErrorIs(t, err, netErr)
		assert.Contains(t, err.Error(), "giving up after 2 attempt(s)")
	})

	t.Run("PermanentErrorReturnedUnchanged", func(t *testing.T) {
		// arrange
		schemeErr := &url.Error{Op: "Get", URL: "foo://x", Err: errors.New("unsupported protocol scheme \"foo\"")}
		next, calls := sequence(fail(schemeErr))

		// act
		_, err := RetryMiddleware(testRetryHandler(3))(next)(req)

		// assert
		assert.Same(t, schemeErr, err)
		assert.Equal(t, 1, *calls)
	})

	t.Run("ContextCanceled", func(t *testing.T) {
		// arrange
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		next, calls := sequence(status(500))

		// act
		_, err := RetryMiddleware(testRetryHandler(3))(next)(req.WithContext(ctx))

		// assert
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, *calls)
	})

	t.Run("ContextCanceledClosesBody", func(t *testing.T) {
		// arrange
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		body := &closeTracker{Reader: strings.NewReader("body")}
		next := func(*http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: body}, nil
		}

		// act
		resp, err := RetryMiddleware(testRetryHandler(3))(next)(req.WithContext(ctx))

		// assert
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, resp)
		assert.True(t, body.closed)
	})
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func Test_ExponentialBackoffTime(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, ExponentialBackoffTime(0, 100*time.Millisecond, time.Second, nil))
	assert.Equal(t, 400*time.Millisecond, ExponentialBackoffTime(2, 100*time.Millisecond, time.Second, nil))
	assert.Equal(t, time.Second, ExponentialBackoffTime(10, 100*time.Millisecond, time.Second, nil))

	resp := response(http.StatusTooManyRequests)
	resp.Header.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, ExponentialBackoffTime(0, 100*time.Millisecond, time.Second, resp))
}

func Test_LinearJitterBackoffTime(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, LinearJitterBackoffTime(2, 100*time.Millisecond, 100*time.Millisecond, nil))
	assert.Equal(t, 100*time.Millisecond, LinearJitterBackoffTime(0, 100*time.Millisecond, 100*time.Millisecond, nil))

	for i := 0; i < 20; i++ {
		wait := LinearJitterBackoffTime(3, 100*time.Millisecond, 200*time.Millisecond, nil)
		assert.GreaterOrEqual(t, wait, 300*time.Millisecond)
		assert.Less(t, wait, 600*time.Millisecond)
	}
}
