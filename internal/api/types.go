package api

import "time"

// UploadResponse is returned by POST /api/upload.
type UploadResponse struct {
	Success     bool   `json:"success"`
	CSVFilePath string `json:"csvFilePath"`
	BatchID     string `json:"batchId,omitempty"`
	Images      int    `json:"images,omitempty"`
	Failures    int    `json:"failures,omitempty"`
}

// SaveResponse is returned by POST /api/save-csv.
type SaveResponse struct {
	Success bool `json:"success"`
}

// SweepResponse is returned by DELETE /api/delete-files.
type SweepResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Deleted int    `json:"deleted"`
}

// BatchSummary is one journal entry in GET /api/batches.
type BatchSummary struct {
	ID          int64     `json:"id"`
	BatchID     string    `json:"batchId"`
	DatasetPath string    `json:"datasetPath"`
	Images      int       `json:"images"`
	Failures    int       `json:"failures"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BatchListResponse is returned by GET /api/batches.
type BatchListResponse struct {
	Batches []BatchSummary `json:"batches"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
