package daemon

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

	"snapsheet/internal/api"
	"snapsheet/internal/catalog"
	"snapsheet/internal/config"
	"snapsheet/internal/dataset"
	"snapsheet/internal/logging"
	"snapsheet/internal/testsupport"
)

func newTestDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*Daemon, *config.Config) {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	journal, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}

	d, err := New(cfg, journal, logging.NewNop())
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d, cfg
}

func multipartUpload(t *testing.T, names ...string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, name := range names {
		part, err := writer.CreateFormFile("images", name)
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		if _, err := part.Write([]byte("fake image bytes for " + name)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func uploadBatch(t *testing.T, d *Daemon, names ...string) api.UploadResponse {
	t.Helper()

	w := httptest.NewRecorder()
	d.api.handleUpload(w, multipartUpload(t, names...))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status %d: %s", w.Code, w.Body.String())
	}
	var resp api.UploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return resp
}

func TestUploadProducesDataset(t *testing.T) {
	d, _ := newTestDaemon(t, testsupport.WithGeneratorScript(`echo '{"Title":"Red Shoe","Desc":"A red shoe"}'`))

	resp := uploadBatch(t, d, "a.png", "b.png")
	if !resp.Success {
		t.Fatalf("expected success: %+v", resp)
	}
	if resp.Images != 2 || resp.Failures != 0 {
		t.Fatalf("unexpected counts: %+v", resp)
	}

	ds, err := d.datasets.Read(resp.CSVFilePath)
	if err != nil {
		t.Fatalf("read dataset: %v", err)
	}
	if len(ds.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(ds.Rows))
	}
}

func TestUploadFailuresBecomeSentinelRows(t *testing.T) {
	d, _ := newTestDaemon(t, testsupport.WithGeneratorScript(`echo "model unavailable" >&2; exit 1`))

	resp := uploadBatch(t, d, "a.png")
	if !resp.Success {
		t.Fatalf("per-image failure must not fail the batch: %+v", resp)
	}
	if resp.Failures != 1 {
		t.Fatalf("failures = %d, want 1", resp.Failures)
	}

	ds, err := d.datasets.Read(resp.CSVFilePath)
	if err != nil {
		t.Fatalf("read dataset: %v", err)
	}
	if ds.Rows[0]["error"] != "Failed to generate description" {
		t.Fatalf("sentinel missing: %v", ds.Rows[0])
	}
}

func TestUploadNoFilesRejected(t *testing.T) {
	d, _ := newTestDaemon(t)

	w := httptest.NewRecorder()
	d.api.handleUpload(w, multipartUpload(t))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestLatestCSVNotFound(t *testing.T) {
	d, _ := newTestDaemon(t)

	w := httptest.NewRecorder()
	d.api.handleLatestCSV(w, httptest.NewRequest(http.MethodGet, "/api/get-latest-csv", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "No CSV file found.") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestLatestCSVReturnsCurrentDataset(t *testing.T) {
	d, _ := newTestDaemon(t, testsupport.WithGeneratorScript(`echo '{"Title":"First"}'`))
	uploadBatch(t, d, "a.png")
	second := uploadBatch(t, d, "b.png")

	w := httptest.NewRecorder()
	d.api.handleLatestCSV(w, httptest.NewRequest(http.MethodGet, "/api/get-latest-csv", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/csv") {
		t.Fatalf("content type %q", ct)
	}

	want, err := os.ReadFile(second.CSVFilePath)
	if err != nil {
		t.Fatalf("read dataset: %v", err)
	}
	if w.Body.String() != string(want) {
		t.Fatalf("latest body mismatch:\n%s\nvs\n%s", w.Body.String(), want)
	}
}

func TestLatestCSVFallsBackWhenPointerDangles(t *testing.T) {
	d, cfg := newTestDaemon(t)

	// Journal points at a dataset that was swept away; a survivor
	// remains on disk for the directory-scan fallback.
	survivor := filepath.Join(cfg.Paths.StorageDir, dataset.Name(time.UnixMilli(1_000)))
	testsupport.SeedFile(t, survivor, []byte("Image,Title\n100_a.png,Shoe\n"))
	gone := filepath.Join(cfg.Paths.StorageDir, dataset.Name(time.UnixMilli(2_000)))
	if _, err := d.journal.RecordBatch(context.Background(), "gone", gone, 1, 0); err != nil {
		t.Fatalf("record: %v", err)
	}

	w := httptest.NewRecorder()
	d.api.handleLatestCSV(w, httptest.NewRequest(http.MethodGet, "/api/get-latest-csv", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected fallback to survivor, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "100_a.png") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func saveRow(t *testing.T, d *Daemon, row map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/save-csv", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	d.api.handleSaveCSV(w, req)
	return w
}

func TestSaveCSVMergesPartialRow(t *testing.T) {
	d, _ := newTestDaemon(t, testsupport.WithGeneratorScript(`echo '{"Title":"Red Shoe","Desc":"A red shoe"}'`))
	resp := uploadBatch(t, d, "a.png", "b.png")

	ds, err := d.datasets.Read(resp.CSVFilePath)
	if err != nil {
		t.Fatalf("read dataset: %v", err)
	}
	target := ds.Rows[0][dataset.ImageColumn]

	w := saveRow(t, d, map[string]string{"Image": target, "Title": "Blue Shoe"})
	if w.Code != http.StatusOK {
		t.Fatalf("save status %d: %s", w.Code, w.Body.String())
	}

	after, err := d.datasets.Read(resp.CSVFilePath)
	if err != nil {
		t.Fatalf("re-read dataset: %v", err)
	}
	if after.Rows[0]["Title"] != "Blue Shoe" || after.Rows[0]["Desc"] != "A red shoe" {
		t.Fatalf("merge wrong: %v", after.Rows[0])
	}
	if after.Rows[1]["Title"] != "Red Shoe" {
		t.Fatalf("other row changed: %v", after.Rows[1])
	}
}

func TestSaveCSVMissingImageColumn(t *testing.T) {
	d, _ := newTestDaemon(t, testsupport.WithGeneratorScript(`echo '{"Title":"Shoe"}'`))
	uploadBatch(t, d, "a.png")

	w := saveRow(t, d, map[string]string{"Title": "No key"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSaveCSVRowNotFound(t *testing.T) {
	d, _ := newTestDaemon(t, testsupport.WithGeneratorScript(`echo '{"Title":"Shoe"}'`))
	uploadBatch(t, d, "a.png")

	w := saveRow(t, d, map[string]string{"Image": "does-not-exist.png"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Row not found.") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestSaveCSVNoDataset(t *testing.T) {
	d, _ := newTestDaemon(t)

	w := saveRow(t, d, map[string]string{"Image": "100_a.png"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDeleteFilesSweeps(t *testing.T) {
	d, cfg := newTestDaemon(t)

	stale := testsupport.SeedUpload(t, cfg.Paths.StorageDir, "100_old.png")
	oldTime := time.Now().Add(-24 * time.Hour)
	if err := os.Chtimes(stale, oldTime, oldTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/delete-files", nil)
	w := httptest.NewRecorder()
	d.api.handleDeleteFiles(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var resp api.SweepResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Deleted != 1 {
		t.Fatalf("unexpected sweep response: %+v", resp)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale file survived")
	}
}

func TestBatchesListsJournal(t *testing.T) {
	d, _ := newTestDaemon(t, testsupport.WithGeneratorScript(`echo '{"Title":"Shoe"}'`))
	uploadBatch(t, d, "a.png")
	uploadBatch(t, d, "b.png")

	w := httptest.NewRecorder()
	d.api.handleBatches(w, httptest.NewRequest(http.MethodGet, "/api/batches", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var resp api.BatchListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(resp.Batches))
	}
}

func TestHealth(t *testing.T) {
	d, _ := newTestDaemon(t)

	w := httptest.NewRecorder()
	d.api.handleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("health = %d %q", w.Code, w.Body.String())
	}
}

func TestClientShellFallback(t *testing.T) {
	clientDir := t.TempDir()
	testsupport.SeedFile(t, filepath.Join(clientDir, "index.html"), []byte("<html>shell</html>"))

	d, _ := newTestDaemon(t, func(cfg *config.Config) {
		cfg.Paths.ClientDir = clientDir
	})

	w := httptest.NewRecorder()
	d.api.handleClient(w, httptest.NewRequest(http.MethodGet, "/some/client/route", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "shell") {
		t.Fatalf("expected application shell, got %s", w.Body.String())
	}
}
