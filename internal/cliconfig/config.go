package cliconfig

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/liviudnicoara/ghget"
)

const EnvPrefix = "GHGET"

// Keys shared by flags, env and config file.
const (
	KeyUserAgent   = "user-agent"
	KeyToken       = "token"
	KeyBaseURL     = "base-url"
	KeyHeader      = "header"
	KeyVerbose     = "verbose"
	KeyTimeout     = "timeout"
	KeyRetry       = "retry"
	KeyOutput      = "output"
	KeyDebug       = "debug"
	KeyLogRequests = "log-requests"
	KeyRequest     = "request"
)

const (
	OutputJSON = "json"
	OutputYAML = "yaml"
	OutputRaw  = "raw"
)

// Config is the resolved CLI configuration.
type Config struct {
	UserAgent   string            `json:"user_agent"`
	Token       string            `json:"token"`
	BaseURL     string            `json:"base_url"`
	Headers     map[string]string `json:"headers"`
	Verbose     bool              `json:"verbose"`
	Timeout     time.Duration     `json:"timeout"`
	Retry       int               `json:"retry"`
	Output      string            `json:"output"`
	Debug       bool              `json:"debug"`
	LogRequests bool              `json:"log_requests"`

	// Request is the raw [request] section of the config file. It is
	// validated by ghget.DecodeOptions.
	Request map[string]any `json:"request,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL: ghget.DefaultBaseURL,
		Timeout: 30 * time.Second,
		Output:  OutputJSON,
	}
}

// Load resolves the configuration with the precedence flags > env > file > defaults.
// cfgFile may be empty. flags may be nil.
func Load(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) (Config, error) {
	var err error

	def := DefaultConfig()
	v.SetDefault(KeyBaseURL, def.BaseURL)
	v.SetDefault(KeyTimeout, def.Timeout)
	v.SetDefault(KeyOutput, def.Output)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err = v.BindEnv(KeyToken, EnvPrefix+"_TOKEN", "GITHUB_TOKEN"); err != nil {
		return Config{}, errors.Wrap(err, "bind token env")
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config file %s", cfgFile)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, errors.Wrap(err, "bind flags")
		}
	}

	// viper reads string arrays back as CSV, which would split header values on commas.
	pairs := v.GetStringSlice(KeyHeader)
	if flags != nil && flags.Changed(KeyHeader) {
		if pairs, err = flags.GetStringArray(KeyHeader); err != nil {
			return Config{}, errors.Wrap(err, "read header flag")
		}
	}

	headers, err := ParseHeaders(pairs)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		UserAgent:   v.GetString(KeyUserAgent),
		Token:       v.GetString(KeyToken),
		BaseURL:     v.GetString(KeyBaseURL),
		Headers:     headers,
		Verbose:     v.GetBool(KeyVerbose),
		Timeout:     v.GetDuration(KeyTimeout),
		Retry:       v.GetInt(KeyRetry),
		Output:      strings.ToLower(v.GetString(KeyOutput)),
		Debug:       v.GetBool(KeyDebug),
		LogRequests: v.GetBool(KeyLogRequests),
	}

	if v.IsSet(KeyRequest) {
		cfg.Request = v.GetStringMap(KeyRequest)
	}

	return cfg, nil
}

// ParseHeaders parses "Name: value" pairs.
func ParseHeaders(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	headers := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.Errorf("invalid header %q, expected \"Name: value\"", p)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

func (c Config) Validate() error {
	switch c.Output {
	case OutputJSON, OutputYAML, OutputRaw:
	default:
		return errors.Errorf("invalid output %q, expected one of %s, %s, %s", c.Output, OutputJSON, OutputYAML, OutputRaw)
	}

	if c.Timeout <= 0 {
		return errors.Errorf("timeout must be positive, got %s", c.Timeout)
	}

	if c.Retry < 0 {
		return errors.Errorf("retry must not be negative, got %d", c.Retry)
	}

	return nil
}

// Options merges the [request] section with the flag/env values and
// validates the result through ghget.DecodeOptions.
func (c Config) Options() (*ghget.Options, error) {
	raw := make(map[string]any, len(c.Request)+5)
	for k, v := range c.Request {
		raw[normalizeKey(k)] = v
	}

	if len(c.Headers) > 0 {
		merged := map[string]string{}
		if existing, ok := raw["headers"]; ok && existing != nil {
			m, err := cast.ToStringMapStringE(existing)
			if err != nil {
				return ghget.DecodeOptions(raw)
			}
			merged = m
		}
		for k, v := range c.Headers {
			merged[k] = v
		}
		raw["headers"] = merged
	}

	if c.UserAgent != "" {
		raw["useragent"] = c.UserAgent
	}
	if c.Token != "" {
		raw["token"] = c.Token
	}
	if c.BaseURL != "" && c.BaseURL != ghget.DefaultBaseURL {
		raw["baseurl"] = c.BaseURL
	}
	if c.Verbose {
		raw["verbose"] = true
	}

	return ghget.DecodeOptions(raw)
}

// Masked returns a copy safe for logging.
func (c Config) Masked() Config {
	if c.Token != "" {
		c.Token = "*****"
	}
	return c
}

func normalizeKey(k string) string {
	k = strings.ToLower(k)
	k = strings.ReplaceAll(k, "-", "")
	return strings.ReplaceAll(k, "_", "")
}
