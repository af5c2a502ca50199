package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"sigs.k8s.io/yaml"

	"github.com/liviudnicoara/ghget"
	"github.com/liviudnicoara/ghget/internal/cliconfig"
)

// writeBody prints the response body in the requested format.
func writeBody(w io.Writer, resp *ghget.Response, format string) error {
	if format == cliconfig.OutputRaw {
		_, err := w.Write(resp.Raw)
		return err
	}

	if s, ok := resp.Body.(string); ok {
		_, err := fmt.Fprintln(w, s)
		return err
	}

	var (
		out []byte
		err error
	)

	switch format {
	case cliconfig.OutputYAML:
		out, err = yaml.Marshal(resp.Body)
	default:
		out, err = json.MarshalIndent(resp.Body, "", "  ")
		out = append(out, '\n')
	}
	if err != nil {
		return fmt.Errorf("encode body as %s: %w", format, err)
	}

	_, err = w.Write(out)
	return err
}

// writeDiagnostics prints the status line and headers of resp.
func writeDiagnostics(w io.Writer, resp *ghget.Response) {
	fmt.Fprintln(w, resp.Status)

	keys := make([]string, 0, len(resp.Header))
	for k := range resp.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, v := range resp.Header[k] {
			fmt.Fprintf(w, "%s: %s\n", k, v)
		}
	}
}
