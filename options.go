package ghget

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

const userAgentHeader = "user-agent"

const pathExample = `Expected a "path" part of a GitHub API URL, for example 'user/repos' if the request URL is https://api.github.com/user/repos.`

// BodyParser turns a raw response body into the value exposed as Response.Body.
type BodyParser func(header http.Header, data []byte) (any, error)

// Options configures a single dispatch.
//
// Headers and UserAgent identify the caller; at least one of them must yield
// a non-empty user-agent. Token, BaseURL and BodyParser are not inspected by
// the dispatcher and are handed to the Normalizer as they are.
type Options struct {
	Headers map[string]string
	// UserAgent is nil when not supplied. A non-nil empty string is rejected.
	UserAgent *string
	// Verbose attaches the full response to upstream errors.
	Verbose bool

	Token      string
	BaseURL    string
	BodyParser BodyParser
}

// String returns a pointer to s, handy for Options.UserAgent.
func String(s string) *string {
	return &s
}

func validatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return &Error{
			Kind:    KindInvalidArgument,
			Message: fmt.Sprintf("%s is not a valid path. %s", inspect(path), pathExample),
		}
	}

	if strings.Contains(path, "://") {
		return &Error{
			Kind:    KindInvalidArgument,
			Message: fmt.Sprintf("%s is a full URL, not a path. %s", inspect(path), pathExample),
		}
	}

	return nil
}

// resolveHeaders validates the identification sources and returns the
// effective header set with a single user-agent entry.
func resolveHeaders(opts *Options) (http.Header, error) {
	header := make(http.Header, len(opts.Headers)+1)

	ua, ok := lookupHeader(opts.Headers, userAgentHeader)

	if opts.UserAgent != nil {
		if *opts.UserAgent == "" {
			return nil, &Error{
				Kind:    KindInvalidValue,
				Message: userAgentTypeMessage(*opts.UserAgent),
			}
		}
		ua, ok = *opts.UserAgent, true
	}

	if !ok {
		return nil, &Error{
			Kind: KindMissingRequiredOption,
			Message: "`userAgent` option (string) is required, " +
				"because you must tell your username or application name to GitHub every API request. " +
				"https://developer.github.com/v3/#user-agent-required",
		}
	}

	for k, v := range opts.Headers {
		if strings.ToLower(k) == userAgentHeader {
			continue
		}
		header.Set(k, v)
	}
	header.Set(userAgentHeader, ua)

	return header, nil
}

// lookupHeader finds the first non-empty value whose key equals name
// case-insensitively. Keys are visited in sorted order so duplicates
// differing only in case resolve deterministically.
func lookupHeader(headers map[string]string, name string) (string, bool) {
	if len(headers) == 0 {
		return "", false
	}

	name = strings.ToLower(name)

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if strings.ToLower(k) == name && headers[k] != "" {
			return headers[k], true
		}
	}

	return "", false
}

func userAgentTypeMessage(v any) string {
	return fmt.Sprintf("Expected `userAgent` option to be a string of valid `user-agent` header, but got %s.", inspect(v))
}

func verboseTypeMessage(v any) string {
	return fmt.Sprintf("%s is not a Boolean value. `verbose` option must be a Boolean value. (`false` by default)", inspect(v))
}

// DecodeOptions builds Options from a loosely typed map, such as a section of
// a config file or a decoded JSON object, checking the type of every
// recognised field. Keys match case-insensitively and ignore '-' and '_', so
// "userAgent", "user_agent" and "useragent" are the same option. Unknown keys
// are ignored.
func DecodeOptions(raw map[string]any) (*Options, error) {
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		fields[normalizeKey(k)] = v
	}

	opts := &Options{}

	if v, ok := fields["headers"]; ok && v != nil {
		headers, err := cast.ToStringMapStringE(v)
		if err != nil {
			return nil, &Error{
				Kind:    KindInvalidArgument,
				Message: fmt.Sprintf("Expected `headers` option to be a map of header names to values, but got %s.", inspect(v)),
				Cause:   err,
			}
		}
		opts.Headers = headers
	}

	if v, ok := fields["useragent"]; ok && v != nil {
		s, isString := v.(string)
		if !isString {
			return nil, &Error{Kind: KindInvalidArgument, Message: userAgentTypeMessage(v)}
		}
		opts.UserAgent = &s
	}

	if _, err := resolveHeaders(opts); err != nil {
		return nil, err
	}

	if v, ok := fields["verbose"]; ok && v != nil {
		b, isBool := v.(bool)
		if !isBool {
			return nil, &Error{Kind: KindInvalidArgument, Message: verboseTypeMessage(v)}
		}
		opts.Verbose = b
	}

	if v, ok := fields["token"]; ok && v != nil {
		s, isString := v.(string)
		if !isString {
			return nil, &OptionsError{Field: "token", Value: v, Reason: "must be a string"}
		}
		opts.Token = s
	}

	if v, ok := fields["baseurl"]; ok && v != nil {
		s, isString := v.(string)
		if !isString {
			return nil, &OptionsError{Field: "baseUrl", Value: v, Reason: "must be a string"}
		}
		opts.BaseURL = s
	}

	return opts, nil
}

func normalizeKey(k string) string {
	k = strings.ToLower(k)
	k = strings.ReplaceAll(k, "-", "")
	return strings.ReplaceAll(k, "_", "")
}

// inspect renders v for error messages.
func inspect(v any) string {
	switch t := v.(type) {
	case nil:
		return "nil"
	case string:
		if t == "" {
			return "'' (empty string)"
		}
		q := strconv.QuoteToASCII(t)
		q = strings.ReplaceAll(q[1:len(q)-1], `\"`, `"`)
		return "'" + strings.ReplaceAll(q, "'", `\'`) + "'"
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%#v", t)
	}
}
