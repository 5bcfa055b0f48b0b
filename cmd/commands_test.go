package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/profile-cli/internal/analysis"
	"github.com/sells-group/profile-cli/internal/model"
	"github.com/sells-group/profile-cli/internal/report"
)

const testProfile = `{
	"Company_Name": "Acme",
	"Business_Overview": "Makes anvils",
	"Headquarters": "Springfield",
	"Financial_Overview": {"revenue": [{"year": "2022", "value": 100}, {"year": "2023", "value": 120}]},
	"Key_Customers": {"details": [{"company_name": "Road Runner Inc", "industry": "Entertainment"}]},
	"End_Markets": ["Construction"]
}`

func TestFormatAnalysesList(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	out := formatAnalysesList([]model.Analysis{{
		ID:        "0123456789abcdef",
		Request:   model.AnalysisRequest{CompanyName: "Acme"},
		Status:    model.AnalysisStatusPolling,
		Progress:  model.Progress{Percent: 42},
		CreatedAt: created,
	}})

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "COMPANY")
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "polling")
	assert.Contains(t, out, "42%")
	assert.Contains(t, out, "2026-03-01 09:30")
}

func TestFormatAnalysesList_Empty(t *testing.T) {
	assert.Equal(t, "No analyses found.\n", formatAnalysesList(nil))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc", truncateID("abc"))
	assert.Equal(t, "abcdefgh", truncateID("abcdefghijk"))
}

type nopRecorder struct {
	analysis.Recorder
	progress []model.Progress
}

func (r *nopRecorder) UpdateAnalysisProgress(_ context.Context, _ string, p model.Progress) error {
	r.progress = append(r.progress, p)
	return nil
}

func TestProgressRecorder(t *testing.T) {
	var buf bytes.Buffer
	inner := &nopRecorder{}
	rec := &progressRecorder{Recorder: inner, w: &buf}

	p := analysis.ProgressFor(18, 180)
	require.NoError(t, rec.UpdateAnalysisProgress(context.Background(), "a-1", p))

	assert.Equal(t, "[ 10%] Gathering financial data... (attempt 18/180)\n", buf.String())
	assert.Equal(t, []model.Progress{p}, inner.progress)
}

func TestAnalysisError(t *testing.T) {
	err := analysisError(analysis.Validate(model.AnalysisRequest{}))
	assert.Equal(t, analysis.UserMessage(analysis.Validate(model.AnalysisRequest{})), err.Error())

	plain := errors.New("disk full")
	assert.Equal(t, plain, analysisError(plain))
}

func TestLoadProfileFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "profile.json")
	require.NoError(t, os.WriteFile(good, []byte(testProfile), 0o644))

	p, err := loadProfileFile(good)
	require.NoError(t, err)
	assert.Equal(t, "Acme", p.Name())

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{}`), 0o644))
	_, err = loadProfileFile(empty)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[1,2]`), 0o644))
	_, err = loadProfileFile(bad)
	assert.Error(t, err)

	_, err = loadProfileFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestWriteReport_File(t *testing.T) {
	var p model.CompanyProfile
	require.NoError(t, json.Unmarshal([]byte(testProfile), &p))
	path := filepath.Join(t.TempDir(), "acme.md")

	var stdout bytes.Buffer
	require.NoError(t, writeReport(&stdout, path, report.Build(p), report.FormatMarkdown))
	assert.Empty(t, stdout.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Acme")
}

// useTestConfig isolates config loading from the working directory.
func useTestConfig(t *testing.T, baseURL string) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("PROFILER_ANALYSIS_BASE_URL", baseURL)
	t.Setenv("PROFILER_ANALYSIS_PIM_SID", "test-sid")
	t.Setenv("PROFILER_ANALYSIS_POLL_INTERVAL_MS", "1")
	t.Setenv("PROFILER_STORE_DATABASE_URL", filepath.Join(t.TempDir(), "profiles.db"))
	t.Setenv("PROFILER_LOG_LEVEL", "error")
}

func TestAnalyzeCommand_EndToEnd(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/interact/api/ve1/intract/tool/conversation", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-sid", r.Header.Get("PIM-SID"))
		fmt.Fprint(w, `{"result":{"conversation_id":"conv-1","message_id":"msg-1"}}`)
	})
	mux.HandleFunc("/interact/api/v1/intract/conversation/fetchDetails", func(w http.ResponseWriter, _ *http.Request) {
		if polls.Add(1) < 2 {
			fmt.Fprint(w, `{"output":{}}`)
			return
		}
		fmt.Fprint(w, `{"output":`+testProfile+`}`)
	})
	remote := httptest.NewServer(mux)
	defer remote.Close()
	useTestConfig(t, remote.URL)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"analyze", "--name", "Acme", "--website", "acme.com", "--format", "json"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())

	var got report.Report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, "Acme", got.Company)
	assert.NotEmpty(t, got.Sections)
	assert.Contains(t, stderr.String(), "attempt 1/180")
	assert.Equal(t, int32(2), polls.Load())
}

func TestReportCommand_FileToXLSX(t *testing.T) {
	useTestConfig(t, "http://127.0.0.1:0")
	dir := t.TempDir()
	in := filepath.Join(dir, "profile.json")
	out := filepath.Join(dir, "acme.xlsx")
	require.NoError(t, os.WriteFile(in, []byte(testProfile), 0o644))

	rootCmd.SetArgs([]string{"report", "--file", in, "--format", "xlsx", "--out", out})
	defer rootCmd.SetArgs(nil)
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	wb, err := xlsx.OpenBinary(data)
	require.NoError(t, err)
	_, ok := wb.Sheet["Financials"]
	assert.True(t, ok)
}
