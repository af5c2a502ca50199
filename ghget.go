// Package ghget issues validated GET requests against the GitHub REST API.
//
// Every call must identify the caller with a user-agent, either through the
// Headers option (any letter case) or the UserAgent option. Responses outside
// the 2xx range come back as *Error values whose message is the status line,
// e.g. "404 Not Found" or "401 Unauthorized (Bad credentials)".
package ghget

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// Get dispatches a GET request for path with the default Dispatcher.
func Get(ctx context.Context, path string, opts *Options) (*Response, error) {
	return NewDispatcher(Default()).Get(ctx, path, opts)
}

// Dispatcher validates request options, hands the request to a
// RequestExecutor and interprets the status code of the result.
// It holds no per-call state and is safe for concurrent use.
type Dispatcher struct {
	re         *RequestExecutor
	normalizer Normalizer
	logger     *slog.Logger
}

func NewDispatcher(re *RequestExecutor) *Dispatcher {
	if re == nil {
		re = Default()
	}

	logger := re.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		re:         re,
		normalizer: NewGitHubNormalizer(),
		logger:     logger,
	}
}

func (d *Dispatcher) WithNormalizer(n Normalizer) *Dispatcher {
	d.normalizer = n
	return d
}

func (d *Dispatcher) WithLogger(logger *slog.Logger) *Dispatcher {
	d.logger = logger
	return d
}

// Get validates path and opts, sends the request and returns the response
// when its status code is within [200, 299].
//
// Transport failures and *OptionsError values from the Normalizer are
// returned unchanged. Everything else is an *Error.
func (d *Dispatcher) Get(ctx context.Context, path string, opts *Options) (*Response, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	if opts == nil {
		opts = &Options{}
	}

	header, err := resolveHeaders(opts)
	if err != nil {
		return nil, err
	}

	ro, err := d.normalizer.Normalize(path, opts, header)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ro.URL, nil)
	if err != nil {
		return nil, &Error{
			Kind:    KindInvalidArgument,
			Message: "could not create request " + ro.URL,
			Cause:   err,
		}
	}
	req.Header = ro.Header

	d.logger.Debug("Dispatching request", "URL", req.URL, "Verbose", opts.Verbose)

	res, err := d.re.pipeline(req)
	if err != nil {
		return nil, err
	}

	if res == nil {
		return nil, fmt.Errorf("calling %s returned empty response", ro.URL)
	}

	if res.Body == nil {
		res.Body = http.NoBody
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	resp := newResponse(req, res, data)
	ok := res.StatusCode >= 200 && res.StatusCode <= 299

	parse := ro.BodyParser
	if parse == nil {
		parse = DefaultBodyParser
	}

	body, parseErr := parse(res.Header, data)
	if parseErr != nil && ok {
		return nil, &Error{
			Kind:       KindDecode,
			Message:    "error parsing response body for request " + ro.URL,
			Cause:      parseErr,
			StatusCode: res.StatusCode,
		}
	}
	resp.Body = body

	if !ok {
		upstreamErr := newUpstreamError(resp, opts.Verbose)
		d.logger.Warn("Unsuccessful response", "URL", req.URL, "Status", resp.Status)
		return nil, upstreamErr
	}

	return resp, nil
}

func newResponse(req *http.Request, res *http.Response, data []byte) *Response {
	status := res.Header.Get("Status")
	if status == "" {
		status = res.Status
	}
	if status == "" {
		status = fmt.Sprintf("%d %s", res.StatusCode, http.StatusText(res.StatusCode))
	}

	sent := req
	if res.Request != nil {
		sent = res.Request
	}

	return &Response{
		StatusCode: res.StatusCode,
		Status:     status,
		StatusText: strings.TrimSpace(strings.TrimPrefix(status, strconv.Itoa(res.StatusCode))),
		Header:     res.Header,
		Raw:        data,
		Request:    sent,
	}
}

// newUpstreamError builds the error for a non-2xx response. The body's
// "message" is appended only when it differs from the reason phrase.
func newUpstreamError(resp *Response, verbose bool) *Error {
	msg := resp.Status

	if m, ok := resp.Body.(map[string]any); ok {
		if bodyMsg, ok := m["message"].(string); ok && bodyMsg != "" && bodyMsg != resp.StatusText {
			msg += " (" + bodyMsg + ")"
		}
	}

	e := &Error{
		Kind:       KindUpstreamHTTP,
		Message:    msg,
		StatusCode: resp.StatusCode,
	}

	if verbose {
		e.Response = resp
	}

	return e
}
