package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBase = "http://example.test"

const listingHTML = `<html><body><ul>
	<li><a href="/memes/a">A</a></li>
	<li><a href="/memes/b">B</a></li>
	<li><a href="/memes/c">C</a></li>
</ul></body></html>`

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error"`
}

func setupEnv(t *testing.T) *httpmock.MockTransport {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("KYM_BASE_URL", testBase)
	t.Setenv("KYM_MAX_RETRIES", "0")
	return httpmock.NewMockTransport()
}

func runCLI(t *testing.T, transport http.RoundTripper, args ...string) (int, envelope, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr, transport)

	var env envelope
	if stdout.Len() > 0 {
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &env), "stdout: %s", stdout.String())
	}
	return code, env, stderr.String()
}

func TestRunListNewest(t *testing.T) {
	transport := setupEnv(t)
	transport.RegisterResponder("GET", testBase+"/memes?kind=submissions&sort=newest",
		httpmock.NewStringResponder(http.StatusOK, listingHTML))

	code, env, _ := runCLI(t, transport, "list_newest", `{"limit": 2}`)

	require.Equal(t, 0, code)
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "A", entries[0]["title"])
	assert.Equal(t, testBase+"/memes/a", entries[0]["url"])
	assert.Equal(t, "B", entries[1]["title"])
}

func TestRunListNewestIntegralNumberForms(t *testing.T) {
	for _, args := range []string{`{"limit": 2.0}`, `{"limit": 2e0}`, `{"limit": 1e1}`} {
		t.Run(args, func(t *testing.T) {
			transport := setupEnv(t)
			transport.RegisterResponder("GET", testBase+"/memes?kind=submissions&sort=newest",
				httpmock.NewStringResponder(http.StatusOK, listingHTML))

			code, env, _ := runCLI(t, transport, "list_newest", args)

			require.Equal(t, 0, code, "error: %v", env.Error)
			var entries []map[string]any
			require.NoError(t, json.Unmarshal(env.Data, &entries))
			want := 2
			if strings.Contains(args, "1e1") {
				want = 3
			}
			assert.Len(t, entries, want)
		})
	}
}

func TestRunListNewestFractionalLimit(t *testing.T) {
	transport := setupEnv(t)

	code, env, _ := runCLI(t, transport, "list_newest", `{"limit": 2.5}`)

	assert.Equal(t, 1, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid arguments for list_newest: limit must be an integer, got number", *env.Error)
	assert.Zero(t, transport.GetTotalCallCount())
}

func TestRunUnknownOperation(t *testing.T) {
	transport := setupEnv(t)

	code, env, _ := runCLI(t, transport, "unknown_op")

	assert.Equal(t, 1, code)
	assert.False(t, env.Success)
	assert.Equal(t, "null", string(env.Data))
	require.NotNil(t, env.Error)
	assert.Equal(t, "unknown operation", *env.Error)
	assert.Zero(t, transport.GetTotalCallCount())
}

func TestRunInvalidJSONArguments(t *testing.T) {
	transport := setupEnv(t)

	code, env, _ := runCLI(t, transport, "list_newest", `{"limit":`)

	assert.Equal(t, 1, code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.True(t, strings.HasPrefix(*env.Error, "invalid arguments: "), *env.Error)
	assert.Zero(t, transport.GetTotalCallCount())
}

func TestRunGetDetailFailure(t *testing.T) {
	transport := setupEnv(t)
	transport.RegisterResponder("GET", testBase+"/memes/gone", httpmock.NewStringResponder(http.StatusNotFound, ""))

	code, env, _ := runCLI(t, transport, "get_detail", `{"url": "/memes/gone"}`)

	assert.Equal(t, 1, code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Contains(t, *env.Error, "status 404")
}

func TestRunGetDetailInvalidURL(t *testing.T) {
	transport := setupEnv(t)

	code, env, _ := runCLI(t, transport, "get_detail", `{"url": "not-a-url"}`)

	assert.Equal(t, 1, code)
	assert.False(t, env.Success)
	assert.Zero(t, transport.GetTotalCallCount())
}

func TestRunExportAndMetricsFile(t *testing.T) {
	transport := setupEnv(t)
	transport.RegisterResponder("GET", testBase+"/memes?kind=submissions&sort=newest",
		httpmock.NewStringResponder(http.StatusOK, listingHTML))
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "entries.csv")
	metricsPath := filepath.Join(dir, "kym.prom")

	code, env, _ := runCLI(t, transport,
		"--export", exportPath, "--export-format", "csv", "--metrics-file", metricsPath,
		"list_newest", `{"limit": 3}`)

	require.Equal(t, 0, code)
	assert.True(t, env.Success)

	exported, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(exported)), "\n")
	assert.Len(t, lines, 4)
	assert.Equal(t, "rank,title,url,thumbnail_url,timestamp", lines[0])

	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "kym_entries_listed_total 3")
	assert.Contains(t, string(metrics), `kym_dispatch_total{operation="list_newest",outcome="success"} 1`)
}

func TestRunInvalidFlagConfig(t *testing.T) {
	transport := setupEnv(t)

	code, env, _ := runCLI(t, transport, "--export-format", "xml", "list_newest")

	assert.Equal(t, 1, code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Contains(t, *env.Error, "export format")
	assert.Zero(t, transport.GetTotalCallCount())
}

func TestRunTools(t *testing.T) {
	setupEnv(t)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"tools"}, &stdout, &stderr, nil)

	require.Equal(t, 0, code)
	var tools []map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &tools))
	require.Len(t, tools, 2)
	assert.Equal(t, "function", tools[0]["type"])
}

func TestRunRequiresOperation(t *testing.T) {
	setupEnv(t)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), nil, &stdout, &stderr, nil)

	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "Error:")
}
