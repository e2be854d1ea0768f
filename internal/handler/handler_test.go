package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfkit/lighthouse-compare/internal/auditor"
	"github.com/perfkit/lighthouse-compare/internal/compare"
	"github.com/perfkit/lighthouse-compare/internal/config"
	"github.com/perfkit/lighthouse-compare/internal/models"
)

const reportTemplate = `{
	"categories": {
		"performance": {"score": %s},
		"accessibility": {"score": 0.9},
		"best-practices": {"score": 0.9},
		"seo": {"score": 0.9}
	},
	"audits": {
		"first-contentful-paint": {"numericValue": 1200},
		"largest-contentful-paint": {"numericValue": %s},
		"speed-index": {"numericValue": 1800},
		"total-blocking-time": {"numericValue": 150},
		"cumulative-layout-shift": {"numericValue": 0.01}
	}
}`

// scriptedRunner serves one payload per call, in order.
type scriptedRunner struct {
	payloads []string
	calls    int
}

func (r *scriptedRunner) Run(ctx context.Context, url, outPath string) error {
	payload := r.payloads[r.calls%len(r.payloads)]
	r.calls++
	return os.WriteFile(outPath, []byte(payload), 0644)
}

func renderReport(performance, lcp string) string {
	s := reportTemplate
	s = strings.Replace(s, "%s", performance, 1)
	s = strings.Replace(s, "%s", lcp, 1)
	return s
}

func testConfig() *config.Config {
	return &config.Config{
		Port: "8080",
		Auditor: config.Auditor{
			Runner:  "exec",
			MaxURLs: 5,
			Timeout: time.Minute,
		},
	}
}

func newTestHandler(runner auditor.Runner) *Handler {
	return NewHandler(testConfig(), auditor.NewWithRunner(runner, time.Minute), nil)
}

func postAudit(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/audit", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.HandleAudit(w, req)
	return w
}

func TestHandleAuditRequiresURLs(t *testing.T) {
	h := newTestHandler(&scriptedRunner{payloads: []string{renderReport("0.9", "2000")}})

	w := postAudit(t, h, `{"urls": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "At least one URL is required", resp.Error)
}

func TestHandleAuditRejectsInvalidBody(t *testing.T) {
	h := newTestHandler(&scriptedRunner{payloads: []string{renderReport("0.9", "2000")}})
	w := postAudit(t, h, `{"urls": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAuditRejectsInvalidURL(t *testing.T) {
	h := newTestHandler(&scriptedRunner{payloads: []string{renderReport("0.9", "2000")}})
	w := postAudit(t, h, `{"urls": ["not a url"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAuditRejectsTooManyURLs(t *testing.T) {
	h := newTestHandler(&scriptedRunner{payloads: []string{renderReport("0.9", "2000")}})

	urls := make([]string, 6)
	for i := range urls {
		urls[i] = "https://example.com/"
	}
	body, _ := json.Marshal(models.AuditRequest{URLs: urls})

	w := postAudit(t, h, string(body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAuditSingleMode(t *testing.T) {
	h := newTestHandler(&scriptedRunner{payloads: []string{renderReport("0.9", "2000")}})

	w := postAudit(t, h, `{"urls": ["https://a.test/", "https://b.test/"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.SingleResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.ID)
	require.Len(t, resp.Single, 2)
	assert.Equal(t, "https://a.test/", resp.Single[0].URL)
	assert.Equal(t, 90, resp.Single[0].Scores[compare.CategoryPerformance])
	assert.Empty(t, resp.Single[0].Branch)
}

// Branch fields without a project path fall back to single mode.
func TestHandleAuditBranchesWithoutProjectPath(t *testing.T) {
	h := newTestHandler(&scriptedRunner{payloads: []string{renderReport("0.9", "2000")}})

	w := postAudit(t, h, `{"urls": ["https://a.test/"], "branch1": "main", "branch2": "feature"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.SingleResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Len(t, resp.Single, 1)
}

func TestHandleAuditCheckoutFailureAbortsRequest(t *testing.T) {
	runner := &scriptedRunner{payloads: []string{renderReport("0.9", "2000")}}
	h := newTestHandler(runner)

	body, _ := json.Marshal(models.AuditRequest{
		URLs:        []string{"https://a.test/"},
		ProjectPath: os.TempDir(),
		Branch1:     "main",
		Branch2:     "feature",
	})

	w := postAudit(t, h, string(body))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Contains(t, resp.Error, "Failed to check out branch main")
	// The first checkout failed, so no audit may have run at all.
	assert.Equal(t, 0, runner.calls)
}

func TestHandleAuditBranchComparison(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	repo := initRepo(t)

	// Two URLs on branch main, then the same two on feature; feature is
	// faster and scores higher.
	runner := &scriptedRunner{payloads: []string{
		renderReport("0.80", "2000"),
		renderReport("0.80", "2000"),
		renderReport("0.95", "1500"),
		renderReport("0.95", "1500"),
	}}
	h := newTestHandler(runner)

	body, _ := json.Marshal(models.AuditRequest{
		URLs:        []string{"https://a.test/", "https://b.test/"},
		ProjectPath: repo,
		Branch1:     "main",
		Branch2:     "feature",
	})

	w := postAudit(t, h, string(body))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.CompareResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.NotEmpty(t, resp.ID)
	require.Len(t, resp.Branch1, 2)
	require.Len(t, resp.Branch2, 2)
	assert.Equal(t, "main", resp.Branch1[0].Branch)
	assert.Equal(t, "feature", resp.Branch2[0].Branch)

	comparison := resp.Comparison
	require.NotNil(t, comparison)
	assert.Equal(t, "main", comparison.BaselineLabel)
	assert.Equal(t, "feature", comparison.CandidateLabel)
	assert.Equal(t, 2, comparison.Summary.TotalURLs)
	assert.Equal(t, 2, comparison.Summary.URLsWithImprovements)
	assert.Equal(t, 0, comparison.Summary.URLsWithRegressions)

	require.Len(t, comparison.PerURL, 2)
	perf := comparison.PerURL[0].ScoreChanges[compare.CategoryPerformance]
	assert.Equal(t, 15, perf.Change)
	assert.True(t, perf.Improvement)

	lcp := comparison.PerURL[0].MetricChanges[compare.MetricLargestContentfulPaint]
	assert.Equal(t, -500.0, lcp.Change)
	assert.True(t, lcp.Improvement)
	assert.Equal(t, "-500ms", lcp.FormattedChange)
}

func TestHandleGetResultWithoutStorage(t *testing.T) {
	h := newTestHandler(&scriptedRunner{payloads: []string{renderReport("0.9", "2000")}})

	req := httptest.NewRequest(http.MethodGet, "/api/result/abc", nil)
	req.SetPathValue("id", "abc")
	w := httptest.NewRecorder()
	h.HandleGetResult(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGetResultRejectsBadID(t *testing.T) {
	h := newTestHandler(&scriptedRunner{payloads: []string{renderReport("0.9", "2000")}})

	req := httptest.NewRequest(http.MethodGet, "/api/result/x", nil)
	req.SetPathValue("id", "../secrets")
	w := httptest.NewRecorder()
	h.HandleGetResult(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.AuthToken = "secret"
	h := NewHandler(cfg, auditor.NewWithRunner(&scriptedRunner{payloads: []string{"{}"}}, time.Minute), nil)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := h.AuthMiddleware(next)

	req := httptest.NewRequest(http.MethodPost, "/api/audit", nil)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/audit", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/audit", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Non-API paths are left alone.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w = httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	git := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@test",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@test",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}

	git("init", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0644))
	git("add", ".")
	git("commit", "-m", "initial")
	git("branch", "feature")

	return dir
}
