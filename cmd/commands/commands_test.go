package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"dog-holders/internal/infra/config"
	"dog-holders/internal/infra/fs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs from an empty directory without exporter variables in the environment
func isolate(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, key := range []string{"GENIIDATA_API_KEY", "GENIIDATA_BASE_URL", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "HOLDERS_OUTPUT_FILE"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	return dir
}

func holdersServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.Header.Get("api-key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		entries := make([]string, 0, 20)
		for i := 0; i < 20; i++ {
			entries = append(entries, fmt.Sprintf(`{"address":"bc1q%02d","balance":%d}`, i, (20-i)*1_000_000_000))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"code":0,"message":"success","data":{"list":[%s]}}`, strings.Join(entries, ","))
	}))
	t.Cleanup(server.Close)
	return server
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHoldersCommandWritesCSV(t *testing.T) {
	dir := isolate(t)
	var hits int32
	server := holdersServer(t, &hits)
	csvPath := filepath.Join(dir, "DOG_Holders.csv")

	out, err := execute(t, "holders", "1", "20", "secret",
		"--api.base_url", server.URL,
		"--api.rate_limit", "0",
		"--log.dir", filepath.Join(dir, "logs"),
		"--output.file", csvPath,
		"--output.metrics_file", filepath.Join(dir, "holders.prom"))

	require.NoError(t, err)
	assert.Contains(t, out, "Saved 20 holders")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	rows, err := fs.ReadHoldersCSV(csvPath)
	require.NoError(t, err)
	require.Len(t, rows, 20)
	assert.Equal(t, "20.00%", rows[0].Percentage)
	assert.FileExists(t, filepath.Join(dir, "holders.prom"))
	assert.FileExists(t, filepath.Join(dir, "logs", "app.log"))
}

func TestHoldersCommandUsesConfiguredKey(t *testing.T) {
	dir := isolate(t)
	var hits int32
	server := holdersServer(t, &hits)
	t.Setenv("GENIIDATA_API_KEY", "secret")

	_, err := execute(t, "holders", "1", "20",
		"--api.base_url", server.URL,
		"--api.rate_limit", "0",
		"--log.dir", filepath.Join(dir, "logs"),
		"--output.chart_file", filepath.Join(dir, "top.png"))

	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "DOG_Holders.csv"))
	assert.FileExists(t, filepath.Join(dir, "top.png"))
}

func TestHoldersCommandFetchFailuresDoNotFail(t *testing.T) {
	dir := isolate(t)
	var hits int32
	server := holdersServer(t, &hits)

	out, err := execute(t, "holders", "1", "20", "wrong-key",
		"--api.base_url", server.URL,
		"--api.rate_limit", "0",
		"--run.retry_delay", "0s",
		"--log.dir", filepath.Join(dir, "logs"),
		"--output.summary_file", filepath.Join(dir, "run.json"))

	require.NoError(t, err)
	assert.Contains(t, out, "Saved 0 holders")
	assert.Contains(t, out, "Failed offsets: [0]")
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))

	data, err := os.ReadFile(filepath.Join(dir, "run.json"))
	require.NoError(t, err)
	var summary fs.RunSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, []int{0}, summary.FailedOffsets)
	assert.Equal(t, 3, summary.Attempts)
	assert.Equal(t, 1, summary.NextRank)
}

func TestHoldersCommandArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"too few", []string{"holders", "1"}},
		{"too many", []string{"holders", "1", "20", "key", "extra"}},
		{"missing key without config", []string{"holders", "1", "20"}},
		{"rank not a number", []string{"holders", "one", "20", "key"}},
		{"rank zero", []string{"holders", "0", "20", "key"}},
		{"negative count", []string{"holders", "1", "-5", "key"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			args := append(tt.args, "--log.dir", filepath.Join(dir, "logs"))

			_, err := execute(t, args...)

			assert.Error(t, err)
			assert.NoFileExists(t, filepath.Join(dir, "DOG_Holders.csv"))
		})
	}
}

func TestParseHoldersArgs(t *testing.T) {
	parsed, err := parseHoldersArgs([]string{"21", "40", "k"}, &config.Config{})
	require.NoError(t, err)
	assert.Equal(t, holdersArgs{startRank: 21, numHolders: 40, apiKey: "k"}, parsed)

	_, err = parseHoldersArgs([]string{"21", "40"}, &config.Config{})
	assert.ErrorIs(t, err, errUsage)

	parsed, err = parseHoldersArgs([]string{"1", "0"}, &config.Config{API: config.APIConfig{Key: "env"}})
	require.NoError(t, err)
	assert.Equal(t, "env", parsed.apiKey)
	assert.Zero(t, parsed.numHolders)
}

func TestChartCommand(t *testing.T) {
	dir := isolate(t)
	var hits int32
	server := holdersServer(t, &hits)
	logDir := filepath.Join(dir, "logs")

	_, err := execute(t, "holders", "1", "20", "secret",
		"--api.base_url", server.URL, "--api.rate_limit", "0", "--log.dir", logDir)
	require.NoError(t, err)

	out, err := execute(t, "chart", "--out", filepath.Join(dir, "chart.png"), "--top", "5", "--log.dir", logDir)

	require.NoError(t, err)
	assert.Contains(t, out, "Chart saved")
	assert.FileExists(t, filepath.Join(dir, "chart.png"))
}

func TestChartCommandMissingCSV(t *testing.T) {
	dir := isolate(t)

	_, err := execute(t, "chart", filepath.Join(dir, "nope.csv"), "--log.dir", filepath.Join(dir, "logs"))

	assert.Error(t, err)
}
