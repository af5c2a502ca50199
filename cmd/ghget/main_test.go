package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liviudnicoara/ghget"
	"github.com/liviudnicoara/ghget/internal/cliconfig"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/users/octocat":
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]any{"login": "octocat", "agent": r.UserAgent()})
		case "/user":
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"message": "Bad credentials"})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{"message": "Not Found"})
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GITHUB_TOKEN", "GHGET_TOKEN", "GHGET_USER_AGENT", "GHGET_BASE_URL", "GHGET_VERBOSE", "GHGET_OUTPUT"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommand(t *testing.T) {
	srv := newServer(t)

	t.Run("JSON", func(t *testing.T) {
		clearEnv(t)

		stdout, _, err := execute(t, "--user-agent", "cli-test", "--base-url", srv.URL, "users/octocat")

		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &body))
		assert.Equal(t, "octocat", body["login"])
		assert.Equal(t, "cli-test", body["agent"])
	})

	t.Run("YAMLWithHeaderAgent", func(t *testing.T) {
		clearEnv(t)

		stdout, _, err := execute(t, "-H", "USER-AGENT: header-agent", "-o", "yaml", "--base-url", srv.URL, "users/octocat")

		require.NoError(t, err)
		assert.Contains(t, stdout, "login: octocat")
		assert.Contains(t, stdout, "agent: header-agent")
	})

	t.Run("EnvUserAgent", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GHGET_USER_AGENT", "env-agent")

		stdout, _, err := execute(t, "--base-url", srv.URL, "users/octocat")

		require.NoError(t, err)
		assert.Contains(t, stdout, "env-agent")
	})

	t.Run("MissingUserAgent", func(t *testing.T) {
		clearEnv(t)

		_, stderr, err := execute(t, "--base-url", srv.URL, "users/octocat")

		assert.ErrorIs(t, err, ghget.ErrMissingRequiredOption)
		assert.Contains(t, stderr, "invalid request options")
	})

	t.Run("VerboseFailure", func(t *testing.T) {
		clearEnv(t)

		_, stderr, err := execute(t, "--user-agent", "cli-test", "--verbose", "--base-url", srv.URL, "user")

		require.Error(t, err)
		assert.Equal(t, "401 Unauthorized (Bad credentials)", err.Error())
		assert.Contains(t, stderr, "401 Unauthorized\n")
		assert.Contains(t, stderr, "Content-Type: application/json")
	})

	t.Run("VerboseFromConfigFile", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "ghget.toml")
		require.NoError(t, os.WriteFile(path, []byte("[request]\nverbose = true\n"), 0o600))

		stdout, stderr, err := execute(t, "-c", path, "--user-agent", "cli-test", "--base-url", srv.URL, "users/octocat")

		require.NoError(t, err)
		assert.Contains(t, stdout, "octocat")
		assert.Contains(t, stderr, "200 OK\n")
		assert.Contains(t, stderr, "Content-Type: application/json")
	})

	t.Run("InvalidOutput", func(t *testing.T) {
		clearEnv(t)

		_, _, err := execute(t, "--user-agent", "cli-test", "-o", "xml", "users/octocat")

		assert.ErrorContains(t, err, "invalid output")
	})

	t.Run("NoPath", func(t *testing.T) {
		clearEnv(t)

		_, _, err := execute(t, "--user-agent", "cli-test")

		assert.Error(t, err)
	})
}

func TestWriteBody(t *testing.T) {
	resp := &ghget.Response{
		Body: map[string]any{"login": "octocat"},
		Raw:  []byte(`{"login":"octocat"}`),
	}

	tests := []struct {
		format string
		want   string
	}{
		{cliconfig.OutputJSON, "{\n  \"login\": \"octocat\"\n}\n"},
		{cliconfig.OutputYAML, "login: octocat\n"},
		{cliconfig.OutputRaw, `{"login":"octocat"}`},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeBody(&buf, resp, tt.format))
			assert.Equal(t, tt.want, buf.String())
		})
	}

	t.Run("TextBody", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeBody(&buf, &ghget.Response{Body: "plain"}, cliconfig.OutputJSON))
		assert.Equal(t, "plain\n", buf.String())
	})
}

func TestWriteDiagnostics(t *testing.T) {
	var buf bytes.Buffer

	writeDiagnostics(&buf, &ghget.Response{
		Status: "404 Not Found",
		Header: http.Header{"X-B": {"2"}, "X-A": {"1"}},
	})

	assert.Equal(t, "404 Not Found\nX-A: 1\nX-B: 2\n", buf.String())
}
