// File: cmd/report_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/renderwait/internal/config"
	"github.com/xkilldash9x/renderwait/internal/report"
)

const sampleReport = `{"time":"2024-03-14T09:30:00Z","kind":"wait","page":"calendar","name":"visible(css=div.share-header)","outcome":"ok","elapsed_ns":500000000}
{"time":"2024-03-14T09:30:01Z","kind":"confirm","page":"calendar","name":"invisible(css=div.edit)","outcome":"lenient","elapsed_ns":2000000000}
not json
`

func TestRunSummarize(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runSummarize(strings.NewReader(sampleReport), &out))

	assert.Contains(t, out.String(), "events: 2 (1 malformed lines skipped)")
	assert.Contains(t, out.String(), "lenient=1")
	assert.Contains(t, out.String(), "ok=1")
}

func TestReportSummarizeCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waits.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(sampleReport), 0o600))

	testRootCmd := newPristineRootCmd()
	var out bytes.Buffer
	testRootCmd.SetOut(&out)
	testRootCmd.SetErr(&out)
	testRootCmd.SetArgs([]string{"report", "summarize", path})

	require.NoError(t, testRootCmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "events: 2")
	assert.Contains(t, out.String(), "slowest waits:")
}

func TestWriteEventLine(t *testing.T) {
	var out bytes.Buffer
	ev := report.Event{
		Time:    time.Date(2024, 3, 14, 9, 30, 2, 0, time.UTC),
		Kind:    report.KindRender,
		Page:    "calendar",
		Name:    "render",
		Outcome: report.OutcomeTimeout,
		Elapsed: 6*time.Second + 300*time.Microsecond,
		Error:   "wait timed out",
	}
	require.NoError(t, writeEventLine(&out, ev))

	line := out.String()
	assert.True(t, strings.HasPrefix(line, "09:30:02 render"))
	assert.Contains(t, line, "calendar/render")
	assert.Contains(t, line, "6s")
	assert.True(t, strings.HasSuffix(line, "wait timed out\n"))
}

func TestReportPath(t *testing.T) {
	path, err := reportPath(context.Background(), []string{"x.jsonl"})
	require.NoError(t, err)
	assert.Equal(t, "x.jsonl", path)

	cfg := config.NewDefaultConfig()
	ctx := context.WithValue(context.Background(), configKey, cfg)
	_, err = reportPath(ctx, nil)
	assert.ErrorContains(t, err, "report.jsonl_path")

	cfg.ReportCfg.JSONLPath = "waits.jsonl"
	path, err = reportPath(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "waits.jsonl", path)
}
