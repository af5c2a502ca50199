package ghget

import (
	"context"
)

// Request is a fluent front-end over Dispatcher:
//
//	resp, err := ghget.NewRequest().
//		WithUserAgent("octocat-tools").
//		WithToken(token).
//		Get(ctx, "users/octocat")
type Request struct {
	d    *Dispatcher
	opts Options
}

func NewRequest() *Request {
	return NewRequestWith(nil)
}

func NewRequestWith(d *Dispatcher) *Request {
	return &Request{d: d}
}

func (r *Request) WithDispatcher(d *Dispatcher) *Request {
	r.d = d
	return r
}

func (r *Request) WithHeaders(headers map[string]string) *Request {
	r.opts.Headers = headers
	return r
}

func (r *Request) WithHeader(key, value string) *Request {
	if r.opts.Headers == nil {
		r.opts.Headers = map[string]string{}
	}
	r.opts.Headers[key] = value
	return r
}

func (r *Request) WithUserAgent(userAgent string) *Request {
	r.opts.UserAgent = &userAgent
	return r
}

func (r *Request) WithToken(token string) *Request {
	r.opts.Token = token
	return r
}

func (r *Request) WithBaseURL(baseURL string) *Request {
	r.opts.BaseURL = baseURL
	return r
}

func (r *Request) WithVerbose(verbose bool) *Request {
	r.opts.Verbose = verbose
	return r
}

func (r *Request) WithBodyParser(parser BodyParser) *Request {
	r.opts.BodyParser = parser
	return r
}

// Options returns a copy of the options collected so far.
func (r *Request) Options() Options {
	return r.opts
}

func (r *Request) Get(ctx context.Context, path string) (*Response, error) {
	d := r.d
	if d == nil {
		d = NewDispatcher(Default())
	}

	opts := r.opts
	return d.Get(ctx, path, &opts)
}

// GetAs dispatches r and decodes the JSON body into T.
func GetAs[T any](ctx context.Context, r *Request, path string) (*T, error) {
	resp, err := r.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return Decode[T](resp)
}
