package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/liviudnicoara/ghget"
	"github.com/liviudnicoara/ghget/internal/cliconfig"
)

var longHelp = strings.TrimSpace(`
Send a GET request to the GitHub REST API and print the response body.

GitHub rejects requests without a User-Agent, so one must be given with
--user-agent, a -H "User-Agent: ..." header, GHGET_USER_AGENT or the
[request] section of a config file.

The token is read from --token, GHGET_TOKEN or GITHUB_TOKEN.
`)

var exampleUsage = strings.TrimSpace(`
  ghget --user-agent my-tool users/octocat
  ghget -H "User-Agent: my-tool" --output yaml repos/golang/go
  GITHUB_TOKEN=... ghget --user-agent my-tool --verbose user
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var cfgPath string
	def := cliconfig.DefaultConfig()

	root := &cobra.Command{
		Use:           "ghget [flags] <path>",
		Short:         "GET a GitHub REST API endpoint",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cliconfig.Load(viper.New(), cfgPath, cmd.Flags())
			if err != nil {
				fmt.Fprintln(stderr, err)
				return err
			}

			log := cliconfig.NewLogger(stderr, cfg.Debug)

			if err := cfg.Validate(); err != nil {
				log.Error().Err(err).Msg("invalid configuration")
				return err
			}
			log.Debug().Interface("config", cfg.Masked()).Msg("configuration")

			opts, err := cfg.Options()
			if err != nil {
				log.Error().Err(err).Msg("invalid request options")
				return err
			}

			resp, err := run(cmd.Context(), cfg, args[0], opts, stderr)
			if err != nil {
				var ghErr *ghget.Error
				if errors.As(err, &ghErr) && ghErr.Response != nil {
					writeDiagnostics(stderr, ghErr.Response)
				}
				log.Error().Err(err).Str("path", args[0]).Msg("request failed")
				return err
			}

			if opts.Verbose {
				writeDiagnostics(stderr, resp)
			}

			return pkgerrors.Wrap(writeBody(stdout, resp, cfg.Output), "write body")
		},
	}

	flags := root.Flags()
	flags.StringVarP(&cfgPath, "config", "c", "", "config file (toml, yaml or json)")
	flags.String(cliconfig.KeyUserAgent, "", "user-agent sent to GitHub (required unless set as a header)")
	flags.StringArrayP(cliconfig.KeyHeader, "H", nil, `extra request header "Name: value" (repeatable)`)
	flags.String(cliconfig.KeyToken, "", "access token (defaults to $GITHUB_TOKEN)")
	flags.String(cliconfig.KeyBaseURL, def.BaseURL, "API base URL, e.g. for GitHub Enterprise")
	flags.Bool(cliconfig.KeyVerbose, false, "print status and headers, also on failure")
	flags.Duration(cliconfig.KeyTimeout, def.Timeout, "request timeout")
	flags.Int(cliconfig.KeyRetry, 0, "retry transient failures up to n times")
	flags.StringP(cliconfig.KeyOutput, "o", def.Output, "output format: json, yaml or raw")
	flags.Bool(cliconfig.KeyDebug, false, "debug logging")
	flags.Bool(cliconfig.KeyLogRequests, false, "log every HTTP request")

	return root
}

func run(ctx context.Context, cfg cliconfig.Config, path string, opts *ghget.Options, stderr io.Writer) (*ghget.Response, error) {
	re := ghget.NewRequestExecutor(http.Client{Timeout: cfg.Timeout})

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	re.Logger = logger

	if cfg.LogRequests {
		re.AddLogging(logger)
	}
	if cfg.Retry > 0 {
		re.WithExponentialRetry(cfg.Retry)
	}

	return ghget.NewDispatcher(re).Get(ctx, path, opts)
}
