package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"snapsheet/internal/api"
	"snapsheet/internal/config"
	"snapsheet/internal/dataset"
	"snapsheet/internal/faults"
	"snapsheet/internal/logging"
	"snapsheet/internal/uploads"
)

// maxUploadBytes bounds one multipart upload request held in memory or
// spooled to disk while parsing.
const maxUploadBytes = 256 << 20

type apiServer struct {
	bind       string
	storageDir string
	clientDir  string
	logger     *slog.Logger
	daemon     *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:       cfg.Paths.APIBind,
		storageDir: cfg.Paths.StorageDir,
		clientDir:  cfg.Paths.ClientDir,
		logger:     logger,
		daemon:     d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload", srv.handleUpload)
	mux.HandleFunc("/api/get-latest-csv", srv.handleLatestCSV)
	mux.HandleFunc("/api/save-csv", srv.handleSaveCSV)
	mux.HandleFunc("/api/delete-files", srv.handleDeleteFiles)
	mux.HandleFunc("/api/batches", srv.handleBatches)
	mux.HandleFunc("/health", srv.handleHealth)
	mux.Handle("/upload/", http.StripPrefix("/upload/", http.FileServer(http.Dir(cfg.Paths.StorageDir))))
	mux.HandleFunc("/", srv.handleClient)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["images"]
	if len(headers) == 0 {
		s.writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	files := make([]uploads.UploadedFile, 0, len(headers))
	for _, header := range headers {
		tempPath, err := s.spoolUpload(header)
		if err != nil {
			s.log().Error("spool upload failed", logging.String("file", header.Filename), logging.Error(err))
			s.writeError(w, http.StatusInternalServerError, "failed to store upload")
			return
		}
		files = append(files, uploads.UploadedFile{TempPath: tempPath, OriginalName: header.Filename})
	}

	result, err := s.daemon.orch.Process(r.Context(), files)
	if err != nil {
		s.log().Error("upload batch failed", logging.Error(err))
		s.writeError(w, faults.HTTPStatus(err), "failed to process upload batch")
		return
	}

	s.writeJSON(w, http.StatusOK, api.UploadResponse{
		Success:     true,
		CSVFilePath: result.DatasetPath,
		BatchID:     result.BatchID,
		Images:      result.ImageCount,
		Failures:    result.ErrorCount,
	})
}

// spoolUpload copies one multipart part into the storage directory so
// the orchestrator's move is a same-filesystem rename.
func (s *apiServer) spoolUpload(header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open part: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(s.storageDir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp: %w", err)
	}
	return tmp.Name(), nil
}

func (s *apiServer) handleLatestCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	path, err := s.daemon.currentDatasetPath(r.Context())
	if err != nil {
		if errors.Is(err, faults.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "No CSV file found.")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to locate latest dataset")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "inline; filename="+strconv.Quote(filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func (s *apiServer) handleSaveCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	updates := make(dataset.Row, len(raw))
	for key, value := range raw {
		updates[key] = jsonValueString(value)
	}
	if strings.TrimSpace(updates[dataset.ImageColumn]) == "" {
		s.writeError(w, http.StatusBadRequest, "Image column is required")
		return
	}

	path, err := s.daemon.currentDatasetPath(r.Context())
	if err != nil {
		if errors.Is(err, faults.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "No CSV file found to update.")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to locate latest dataset")
		return
	}

	if err := s.daemon.datasets.UpdateRow(path, updates); err != nil {
		switch status := faults.HTTPStatus(err); status {
		case http.StatusNotFound:
			s.writeError(w, status, "Row not found.")
		case http.StatusBadRequest:
			s.writeError(w, status, "Image column is required")
		default:
			s.log().Error("row update failed", logging.String(logging.FieldDataset, path), logging.Error(err))
			s.writeError(w, status, "Failed to update CSV file.")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, api.SaveResponse{Success: true})
}

func (s *apiServer) handleDeleteFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	deleted, err := s.daemon.sweep.SweepOnce(r.Context())
	if err != nil {
		s.log().Error("sweep failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to delete old files")
		return
	}

	s.writeJSON(w, http.StatusOK, api.SweepResponse{
		Success: true,
		Message: "Old files deleted successfully.",
		Deleted: deleted,
	})
}

func (s *apiServer) handleBatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.daemon.journal == nil {
		s.writeJSON(w, http.StatusOK, api.BatchListResponse{})
		return
	}

	batches, err := s.daemon.journal.ListBatches(r.Context(), 50)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list batches")
		return
	}
	out := make([]api.BatchSummary, 0, len(batches))
	for _, batch := range batches {
		out = append(out, api.BatchSummary{
			ID:          batch.ID,
			BatchID:     batch.BatchID,
			DatasetPath: batch.DatasetPath,
			Images:      batch.ImageCount,
			Failures:    batch.ErrorCount,
			CreatedAt:   batch.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, api.BatchListResponse{Batches: out})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

// handleClient serves the single-page client: real files when they
// exist, the application shell for everything else.
func (s *apiServer) handleClient(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		s.writeError(w, http.StatusNotFound, "unknown endpoint")
		return
	}
	if s.clientDir == "" {
		http.NotFound(w, r)
		return
	}

	requested := filepath.Join(s.clientDir, filepath.Clean("/"+r.URL.Path))
	if info, err := os.Stat(requested); err == nil && !info.IsDir() {
		http.ServeFile(w, r, requested)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.clientDir, "index.html"))
}

func jsonValueString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.WithComponent(s.logger, "api-server")
	}
	return logging.NewNop()
}
