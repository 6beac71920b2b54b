package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fankserver/transcribe-web/internal/jobs"
	"github.com/fankserver/transcribe-web/pkg/transcriber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	router    http.Handler
	store     *jobs.Store
	uploadDir string
	resultDir string
}

func newTestApp(t *testing.T, maxUploadBytes int64) *testApp {
	t.Helper()
	dir := t.TempDir()
	app := &testApp{
		store:     jobs.NewStore(),
		uploadDir: filepath.Join(dir, "uploads"),
		resultDir: filepath.Join(dir, "results"),
	}
	worker := jobs.NewWorker(app.store, &transcriber.MockTranscriber{Text: "hello from the test"}, nil, app.resultDir, nil)
	launcher := jobs.NewLauncher(app.store, worker, app.uploadDir, nil)
	reporter := jobs.NewReporter(app.store, app.resultDir)
	app.router = NewHandlers(launcher, reporter, maxUploadBytes, worker.Ready).Router(nil)
	return app
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, filename, content, language string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "-" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	if language != "" {
		require.NoError(t, mw.WriteField("language", language))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeProgress(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestIndex(t *testing.T) {
	app := newTestApp(t, 0)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="file"`)
	assert.Contains(t, rec.Body.String(), `<option value="auto">`)
	assert.NotContains(t, rec.Body.String(), `class="error"`)
}

func TestUploadValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     func(t *testing.T) *http.Request
		message string
	}{
		{
			name:    "no_file_part",
			req:     func(t *testing.T) *http.Request { return multipartRequest(t, "-", "", "auto") },
			message: jobs.MsgNoFilePart,
		},
		{
			name: "not_multipart",
			req: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("language=en"))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				return req
			},
			message: jobs.MsgNoFilePart,
		},
		{
			name:    "no_selected_file",
			req:     func(t *testing.T) *http.Request { return multipartRequest(t, "", "", "auto") },
			message: jobs.MsgNoSelectedFile,
		},
		{
			name:    "exe",
			req:     func(t *testing.T) *http.Request { return multipartRequest(t, "setup.exe", "MZ", "auto") },
			message: jobs.MsgFileNotAllowed,
		},
		{
			name:    "txt",
			req:     func(t *testing.T) *http.Request { return multipartRequest(t, "notes.txt", "hi", "") },
			message: jobs.MsgFileNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, 0)

			rec := app.do(tt.req(t))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
			assert.Equal(t, 0, app.store.Len())
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	app := newTestApp(t, 64)

	rec := app.do(multipartRequest(t, "sample.wav", strings.Repeat("x", 4096), "auto"))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), MsgFileTooLarge)
	assert.Equal(t, 0, app.store.Len())
}

func TestUploadFlow(t *testing.T) {
	app := newTestApp(t, 1<<20)

	rec := app.do(multipartRequest(t, "sample.wav", "pcm", "auto"))
	require.Equal(t, http.StatusFound, rec.Code)

	location := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/processing/"))
	jobID := strings.TrimPrefix(location, "/processing/")

	rec = app.do(httptest.NewRequest(http.MethodGet, location, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), jobID)

	require.Eventually(t, func() bool {
		rec := app.do(httptest.NewRequest(http.MethodGet, "/progress/"+jobID, nil))
		return decodeProgress(t, rec)["status"] == "done"
	}, 5*time.Second, 10*time.Millisecond)

	rec = app.do(httptest.NewRequest(http.MethodGet, "/progress/"+jobID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	progress := decodeProgress(t, rec)
	assert.Equal(t, float64(100), progress["progress"])
	assert.Equal(t, "sample.wav.txt", progress["result_filename"])
	assert.Equal(t, "hello from the test", progress["text"])
	assert.NotContains(t, progress, "error")

	rec = app.do(httptest.NewRequest(http.MethodGet, "/result/"+jobID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello from the test")
	assert.Contains(t, rec.Body.String(), `href="/download/sample.wav.txt"`)

	rec = app.do(httptest.NewRequest(http.MethodGet, "/download/sample.wav.txt", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello from the test", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	_, err := os.Stat(filepath.Join(app.uploadDir, "sample.wav"))
	assert.NoError(t, err)
}

func TestProgressUnknownJob(t *testing.T) {
	app := newTestApp(t, 0)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/progress/does-not-exist", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{"status": "not_found", "progress": float64(0)}, decodeProgress(t, rec))
}

func TestProgressIgnoresAcceptHeader(t *testing.T) {
	app := newTestApp(t, 0)
	app.store.Register("job-1")

	req := httptest.NewRequest(http.MethodGet, "/progress/job-1", nil)
	req.Header.Set("Accept", "application/xml")
	rec := app.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, map[string]interface{}{"status": "queued", "progress": float64(0)}, decodeProgress(t, rec))
	assert.NotContains(t, rec.Body.String(), "job-1")
}

func TestResultRedirectsUntilDone(t *testing.T) {
	app := newTestApp(t, 0)
	app.store.Register("running")

	for _, id := range []string{"running", "unknown"} {
		rec := app.do(httptest.NewRequest(http.MethodGet, "/result/"+id, nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/processing/"+id, rec.Header().Get("Location"))
	}
}

func TestDownloadRejectsUnknownAndUnsafeNames(t *testing.T) {
	app := newTestApp(t, 0)
	require.NoError(t, os.MkdirAll(app.resultDir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(app.resultDir), "secret.txt"), []byte("secret"), 0600))

	for _, path := range []string{"/download/missing.txt", "/download/..%2Fsecret.txt", "/download/.env"} {
		rec := app.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.NotContains(t, rec.Body.String(), "secret", path)
	}
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t, 0)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

// idleTranscriber reports that its backend is unavailable
type idleTranscriber struct {
	transcriber.MockTranscriber
}

func (idleTranscriber) IsReady() bool {
	return false
}

func TestHealthzReportsTranscriberNotReady(t *testing.T) {
	store := jobs.NewStore()
	dir := t.TempDir()
	worker := jobs.NewWorker(store, &idleTranscriber{}, nil, dir, nil)
	router := NewHandlers(jobs.NewLauncher(store, worker, dir, nil), jobs.NewReporter(store, dir), 0, worker.Ready).Router(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "transcriber not ready", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t, 0)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "transcribe_web_jobs_in_progress")
}

func TestServerRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	server := NewServer("127.0.0.1:0", http.NotFoundHandler())

	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
