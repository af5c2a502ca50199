package ghget

import (
	"encoding/json"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"unicode"
)

const (
	DefaultBaseURL = "https://api.github.com"
	DefaultAccept  = "application/vnd.github.v3+json"
)

// RequestOptions is the transport-ready form of Options.
type RequestOptions struct {
	URL        string
	Header     http.Header
	BodyParser BodyParser
}

// Normalizer turns validated Options into RequestOptions. It owns the
// passthrough fields (token, base URL, body parser) and reports malformed
// ones as *OptionsError.
type Normalizer interface {
	Normalize(path string, opts *Options, header http.Header) (*RequestOptions, error)
}

// GitHubNormalizer targets the GitHub REST API.
type GitHubNormalizer struct {
	BaseURL string
	Accept  string
}

func NewGitHubNormalizer() *GitHubNormalizer {
	return &GitHubNormalizer{
		BaseURL: DefaultBaseURL,
		Accept:  DefaultAccept,
	}
}

func (n *GitHubNormalizer) Normalize(path string, opts *Options, header http.Header) (*RequestOptions, error) {
	base := n.BaseURL
	if opts.BaseURL != "" {
		base = opts.BaseURL
	}

	u, err := url.Parse(base)
	if err != nil {
		return nil, &OptionsError{Field: "baseUrl", Value: base, Reason: err.Error()}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &OptionsError{Field: "baseUrl", Value: base, Reason: "must be an absolute http(s) URL"}
	}

	if strings.IndexFunc(opts.Token, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return nil, &OptionsError{Field: "token", Value: opts.Token, Reason: "must not contain whitespace or control characters"}
	}

	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}

	if opts.Token != "" {
		h.Set("Authorization", "token "+opts.Token)
	}

	if h.Get("Accept") == "" && n.Accept != "" {
		h.Set("Accept", n.Accept)
	}

	parser := opts.BodyParser
	if parser == nil {
		parser = DefaultBodyParser
	}

	return &RequestOptions{
		URL:        strings.TrimRight(u.String(), "/") + "/" + strings.TrimLeft(path, "/"),
		Header:     h,
		BodyParser: parser,
	}, nil
}

// DefaultBodyParser decodes JSON bodies (or bodies without a content type)
// into generic values and returns any other body as a string.
func DefaultBodyParser(header http.Header, data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}

	contentType := header.Get("Content-Type")
	if contentType != "" && !isJSON(contentType) {
		return string(data), nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
