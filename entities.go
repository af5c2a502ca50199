package ghget

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Kind classifies the errors produced by the dispatcher itself.
type Kind int

const (
	KindInvalidArgument Kind = iota + 1
	KindInvalidValue
	KindMissingRequiredOption
	KindUpstreamHTTP
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindInvalidValue:
		return "invalid value"
	case KindMissingRequiredOption:
		return "missing required option"
	case KindUpstreamHTTP:
		return "upstream http error"
	case KindDecode:
		return "decode error"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. They only carry a Kind.
var (
	ErrInvalidArgument       = &Error{Kind: KindInvalidArgument}
	ErrInvalidValue          = &Error{Kind: KindInvalidValue}
	ErrMissingRequiredOption = &Error{Kind: KindMissingRequiredOption}
	ErrUpstreamHTTP          = &Error{Kind: KindUpstreamHTTP}
	ErrDecode                = &Error{Kind: KindDecode}
)

type Error struct {
	Kind       Kind
	Message    string
	Cause      error
	StatusCode int

	// Response is only set for upstream errors when the Verbose option is on.
	Response *Response
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// OptionsError is returned by a Normalizer when a passthrough option
// such as the token or the base URL is malformed.
type OptionsError struct {
	Field  string
	Value  any
	Reason string
}

func (e *OptionsError) Error() string {
	return fmt.Sprintf("invalid `%s` option %s: %s", e.Field, inspect(e.Value), e.Reason)
}

// Response is the result of a successful (or, in verbose mode, failed) dispatch.
type Response struct {
	StatusCode int
	// Status is the status line, e.g. "404 Not Found".
	Status string
	// StatusText is the reason phrase, e.g. "Not Found".
	StatusText string
	Header     http.Header
	// Body holds the value produced by the body parser.
	Body any
	Raw  []byte
	// Request is the request that was actually sent.
	Request *http.Request
}

// Decode unmarshals the raw JSON body of r into a new T.
func Decode[T any](r *Response) (*T, error) {
	if r == nil {
		return nil, &Error{Kind: KindDecode, Message: "nil response"}
	}

	var v T
	if err := json.Unmarshal(r.Raw, &v); err != nil {
		return nil, &Error{
			Kind:       KindDecode,
			Message:    fmt.Sprintf("error unmarshaling response body into %T", v),
			Cause:      err,
			StatusCode: r.StatusCode,
		}
	}
	return &v, nil
}
