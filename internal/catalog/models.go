package catalog

import "time"

// Batch records one completed upload batch.
type Batch struct {
	ID          int64
	BatchID     string
	DatasetPath string
	ImageCount  int
	ErrorCount  int
	CreatedAt   time.Time
}
