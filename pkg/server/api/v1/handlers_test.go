package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vulntor/exposure/pkg/nvd"
	"github.com/vulntor/exposure/pkg/results"
	"github.com/vulntor/exposure/pkg/server/api"
	"github.com/vulntor/exposure/pkg/server/jobs"
	"github.com/vulntor/exposure/pkg/shodan"
	"github.com/vulntor/exposure/pkg/tasks"
)

// echoTask returns its params, or fails when asked to.
type echoTask struct{}

func (echoTask) Metadata() tasks.Metadata {
	return tasks.Metadata{
		Name:        "echo",
		Description: "Echo parameters",
		Params: []tasks.Param{
			{Name: "target", Label: "Target", Type: "text", Required: true},
		},
		AcceptsLog: true,
		Timeout:    5 * time.Second,
	}
}

func (echoTask) Run(_ context.Context, env *tasks.Env, p tasks.Params) (any, error) {
	if p.String("target") == "fail" {
		return nil, errors.New("upstream exploded")
	}
	_ = env.Log.Printf("echoing %s", p.String("target"))
	return map[string]any{"target": p.String("target"), "note": "CVE-2021-44228"}, nil
}

type fakeCVE struct {
	detail *nvd.CVEDetail
	err    error
}

func (f *fakeCVE) Get(_ context.Context, id string) (*nvd.CVEDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	d := *f.detail
	d.ID = id
	return &d, nil
}

type fakeShodan struct {
	key     string
	deleted []string
}

func (f *fakeShodan) APIInfo(context.Context) (map[string]any, error) {
	if f.key == "" {
		return nil, shodan.ErrMissingKey
	}
	return map[string]any{"plan": "dev", "query_credits": 100.0}, nil
}

func (f *fakeShodan) Alerts(context.Context) ([]map[string]any, error) {
	if f.key == "" {
		return nil, shodan.ErrMissingKey
	}
	return []map[string]any{{"id": "ALERT1", "name": "office"}}, nil
}

func (f *fakeShodan) DeleteAlert(_ context.Context, id string) error {
	if f.key == "" {
		return shodan.ErrMissingKey
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func newDeps(t *testing.T) (*api.Deps, *fakeShodan) {
	t.Helper()
	store, err := results.NewStore(t.TempDir())
	require.NoError(t, err)

	reg := tasks.NewRegistry()
	reg.Register(echoTask{})

	sh := &fakeShodan{}
	ready := &atomic.Bool{}
	return &api.Deps{
		Tasks:   reg,
		Env:     func() *tasks.Env { return &tasks.Env{} },
		Results: store,
		Jobs:    jobs.NewMemoryManager(1, 4),
		CVE:     &fakeCVE{detail: &nvd.CVEDetail{CVSS: 10, Severity: "Critical"}},
		Shodan: func(key string) api.ShodanAccount {
			sh.key = key
			return sh
		},
		Ready:  ready,
		Config: api.DefaultConfig(),
	}, sh
}

func doJSON(t *testing.T, h http.HandlerFunc, method, target, body string, pathValues ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthAndReady(t *testing.T) {
	w := doJSON(t, HealthzHandler(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)

	ready := &atomic.Bool{}
	w = doJSON(t, ReadyzHandler(ready), http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	ready.Store(true)
	w = doJSON(t, ReadyzHandler(ready), http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Ready", w.Body.String())
}

func TestTasksSchemaHandler(t *testing.T) {
	deps, _ := newDeps(t)
	w := doJSON(t, TasksSchemaHandler(deps), http.MethodGet, "/api/v1/tasks/schema", "")
	require.Equal(t, http.StatusOK, w.Code)

	var schema map[string]tasks.SchemaEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &schema))
	require.Contains(t, schema, "echo")
	require.Equal(t, "Echo parameters", schema["echo"].Description)
	require.Len(t, schema["echo"].Params, 1)
	require.Equal(t, 5, schema["echo"].TimeoutSec)
}

func TestRunTaskHandler_Success(t *testing.T) {
	deps, _ := newDeps(t)
	w := doJSON(t, RunTaskHandler(deps), http.MethodPost, "/api/v1/run/echo",
		`{"params":{"target":"192.0.2.1","nvd_api_key":"secret"}}`, "name", "echo")
	require.Equal(t, http.StatusOK, w.Code)

	var resp RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, RunFinished, resp.Status)
	require.FileExists(t, resp.OutPath)
	require.FileExists(t, resp.LogPath)
	require.Equal(t, "192.0.2.1", resp.Data.(map[string]any)["target"])

	logData, err := os.ReadFile(resp.LogPath)
	require.NoError(t, err)
	require.Contains(t, string(logData), "echoing 192.0.2.1")

	entries, err := deps.Results.List()
	require.NoError(t, err)
	var meta string
	for _, e := range entries {
		if strings.HasPrefix(e.Name, "meta_echo_") {
			meta = e.Path
		}
	}
	require.NotEmpty(t, meta, "run metadata saved")
	raw, err := os.ReadFile(meta)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "secret")
	require.Contains(t, string(raw), resp.OutPath)
}

func TestRunTaskHandler_TaskFailure(t *testing.T) {
	deps, _ := newDeps(t)
	w := doJSON(t, RunTaskHandler(deps), http.MethodPost, "/api/v1/run/echo",
		`{"params":{"target":"fail"}}`, "name", "echo")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, RunError, resp.Status)
	require.Equal(t, "upstream exploded", resp.Message)
	require.FileExists(t, resp.ErrorFile)
	require.True(t, strings.HasPrefix(filepath.Base(resp.ErrorFile), "error_echo_"))
}

func TestRunTaskHandler_Rejected(t *testing.T) {
	deps, _ := newDeps(t)
	tests := []struct {
		name     string
		task     string
		body     string
		wantCode string
	}{
		{"unknown task", "nope", `{"params":{}}`, "UNKNOWN_TASK"},
		{"missing param", "echo", `{"params":{}}`, "INVALID_PARAMETER"},
		{"blank param", "echo", `{"params":{"target":"  "}}`, "INVALID_PARAMETER"},
		{"bad json", "echo", `{"params":`, "VALIDATION_FAILED"},
		{"bad name", "Echo!", `{}`, "VALIDATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, RunTaskHandler(deps), http.MethodPost, "/api/v1/run/x", tt.body, "name", tt.task)
			require.Equal(t, http.StatusBadRequest, w.Code)
			var resp api.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestJobHandlers(t *testing.T) {
	deps, _ := newDeps(t)
	require.NoError(t, deps.Jobs.Start(context.Background()))
	t.Cleanup(func() { _ = deps.Jobs.Stop(context.Background()) })

	w := doJSON(t, SubmitJobHandler(deps), http.MethodPost, "/api/v1/jobs/echo",
		`{"params":{"target":"192.0.2.9"}}`, "name", "echo")
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	id := accepted["id"]
	require.NotEmpty(t, id)
	require.Equal(t, "/api/v1/jobs/"+id, w.Header().Get("Location"))

	require.Eventually(t, func() bool {
		rec, ok := deps.Jobs.Get(id)
		return ok && rec.Done()
	}, 5*time.Second, 10*time.Millisecond)

	w = doJSON(t, GetJobHandler(deps), http.MethodGet, "/api/v1/jobs/"+id, "", "id", id)
	require.Equal(t, http.StatusOK, w.Code)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	require.Equal(t, string(jobs.StateFinished), rec["state"])
	require.Equal(t, RunFinished, rec["result"].(map[string]any)["status"])

	w = doJSON(t, GetJobHandler(deps), http.MethodGet, "/api/v1/jobs/missing", "", "id", "missing")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitJobHandler_RejectsBeforeQueueing(t *testing.T) {
	deps, _ := newDeps(t)
	w := doJSON(t, SubmitJobHandler(deps), http.MethodPost, "/api/v1/jobs/echo", `{}`, "name", "echo")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Zero(t, deps.Jobs.Status().QueueDepth)
}

func TestSubmitJobHandler_NotRunning(t *testing.T) {
	deps, _ := newDeps(t)
	w := doJSON(t, SubmitJobHandler(deps), http.MethodPost, "/api/v1/jobs/echo",
		`{"params":{"target":"x"}}`, "name", "echo")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestResultsHandlers(t *testing.T) {
	deps, _ := newDeps(t)
	path, err := deps.Results.Save("nmap_scan", map[string]any{
		"results": []any{map[string]any{"vulns": map[string]any{"CVE-2014-0160": map[string]any{}}}},
		"note":    "see cve-2021-44228",
	})
	require.NoError(t, err)

	w := doJSON(t, ListResultsHandler(deps), http.MethodGet, "/api/v1/results", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []ResultSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, path, list[0].Path)

	w = doJSON(t, GetResultFileHandler(deps), http.MethodGet, "/api/v1/results/file?path="+filepath.Base(path), "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "CVE-2014-0160")

	w = doJSON(t, GetResultFileHandler(deps), http.MethodGet, "/api/v1/results/file?path=missing.json", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, GetResultFileHandler(deps), http.MethodGet, "/api/v1/results/file?path=../etc/passwd", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, GetResultFileHandler(deps), http.MethodGet, "/api/v1/results/file", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, ExtractCVEsHandler(deps), http.MethodGet, "/api/v1/extract-cves?path="+filepath.Base(path), "")
	require.Equal(t, http.StatusOK, w.Code)
	var ex ExtractCVEsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ex))
	require.Equal(t, []string{"CVE-2014-0160", "CVE-2021-44228"}, ex.CVEs)
	require.Equal(t, 2, ex.Count)
	require.Equal(t, "Unknown", ex.SeverityMap["CVE-2014-0160"].Severity)
	require.Empty(t, ex.SeverityMap["CVE-2014-0160"].Suggested)
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadJSONHandler(t *testing.T) {
	deps, _ := newDeps(t)

	body, ctype := multipartBody(t, "report.json", `{"finding":"CVE-2019-0708"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload-json", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	UploadJSONHandler(deps).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, []string{"CVE-2019-0708"}, resp.CVEs)
	require.True(t, strings.HasPrefix(filepath.Base(resp.Path), "report_"))
	require.FileExists(t, resp.Path)
}

func TestUploadJSONHandler_Rejects(t *testing.T) {
	deps, _ := newDeps(t)

	body, ctype := multipartBody(t, "bad.json", `not json`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload-json", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	UploadJSONHandler(deps).ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/upload-json", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	UploadJSONHandler(deps).ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	deps.Config.UploadLimit = 64
	body, ctype = multipartBody(t, "big.json", `{"x":"`+strings.Repeat("a", 256)+`"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/upload-json", body)
	req.Header.Set("Content-Type", ctype)
	w = httptest.NewRecorder()
	UploadJSONHandler(deps).ServeHTTP(w, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestGetCVEHandler(t *testing.T) {
	deps, _ := newDeps(t)

	w := doJSON(t, GetCVEHandler(deps), http.MethodGet, "/api/v1/nvd/cve?cve=cve-2021-44228", "")
	require.Equal(t, http.StatusOK, w.Code)
	var detail nvd.CVEDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	require.Equal(t, "CVE-2021-44228", detail.ID)
	require.Equal(t, "Critical", detail.Severity)

	w = doJSON(t, GetCVEHandler(deps), http.MethodGet, "/api/v1/nvd/cve?cve=log4shell", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	deps.CVE = &fakeCVE{err: nvd.ErrNotFound}
	w = doJSON(t, GetCVEHandler(deps), http.MethodGet, "/api/v1/nvd/cve?cve=CVE-1999-0001", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	var failed CVEErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &failed))
	require.Equal(t, "CVE-1999-0001", failed.CVE)
	require.NotEmpty(t, failed.Error)
}

func TestShodanHandlers(t *testing.T) {
	deps, sh := newDeps(t)

	w := doJSON(t, ShodanAPIInfoHandler(deps), http.MethodGet, "/api/v1/shodan/api-info?api_key=k", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"plan":"dev"`)

	w = doJSON(t, ShodanAPIInfoHandler(deps), http.MethodGet, "/api/v1/shodan/api-info", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, ListAlertsHandler(deps), http.MethodPost, "/api/v1/alerts/list", `{"params":{"api_key":"k"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ALERT1")

	w = doJSON(t, ListAlertsHandler(deps), http.MethodPost, "/api/v1/alerts/list", `{"params":{}}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, DeleteAlertHandler(deps), http.MethodPost, "/api/v1/alerts/delete", `{"params":{"api_key":"k","alert_id":"ALERT1"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"deleted","id":"ALERT1"}`, w.Body.String())
	require.Equal(t, []string{"ALERT1"}, sh.deleted)

	w = doJSON(t, DeleteAlertHandler(deps), http.MethodPost, "/api/v1/alerts/delete", `{"params":{"api_key":"k"}}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShodanHandlers_Timeout(t *testing.T) {
	deps, _ := newDeps(t)
	deps.Config.HandlerTimeout = 20 * time.Millisecond
	deps.Shodan = func(string) api.ShodanAccount { return slowShodan{&fakeShodan{}} }

	w := doJSON(t, ShodanAPIInfoHandler(deps), http.MethodGet, "/api/v1/shodan/api-info?api_key=k", "")
	require.Equal(t, http.StatusGatewayTimeout, w.Code)
	require.Contains(t, w.Body.String(), "TIMEOUT")
}

type slowShodan struct{ *fakeShodan }

func (slowShodan) APIInfo(ctx context.Context) (map[string]any, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
