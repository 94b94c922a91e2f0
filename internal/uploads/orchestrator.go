package uploads

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"snapsheet/internal/catalog"
	"snapsheet/internal/config"
	"snapsheet/internal/dataset"
	"snapsheet/internal/faults"
	"snapsheet/internal/generator"
	"snapsheet/internal/logging"
)

// UploadedFile is one received file awaiting processing. TempPath must
// live on the same filesystem as the storage directory so the move is a
// rename.
type UploadedFile struct {
	TempPath     string
	OriginalName string
}

// Result summarizes one completed batch.
type Result struct {
	BatchID     string
	DatasetPath string
	ImageCount  int
	ErrorCount  int
}

// Orchestrator runs upload batches end to end.
type Orchestrator struct {
	storageDir    string
	maxConcurrent int
	store         *dataset.Store
	journal       *catalog.Store
	gen           generator.Client
	logger        *slog.Logger
	now           func() time.Time
}

// New constructs an orchestrator. The journal may be nil; batches are
// then discoverable only through the directory scan fallback.
func New(cfg *config.Config, store *dataset.Store, journal *catalog.Store, gen generator.Client, logger *slog.Logger) *Orchestrator {
	width := cfg.Generator.MaxConcurrent
	if width <= 0 {
		width = 1
	}
	return &Orchestrator{
		storageDir:    cfg.Paths.StorageDir,
		maxConcurrent: width,
		store:         store,
		journal:       journal,
		gen:           gen,
		logger:        logging.WithComponent(logger, "orchestrator"),
		now:           time.Now,
	}
}

// Process moves every file into storage, generates fields for each
// concurrently (bounded by the configured width), and writes the batch
// as a new dataset. Per-image generation failures become sentinel rows;
// only storage failures fail the batch. Process returns after every
// invocation has settled.
func (o *Orchestrator) Process(ctx context.Context, files []UploadedFile) (*Result, error) {
	if len(files) == 0 {
		return nil, faults.Wrap(faults.ErrValidation, "orchestrator", "process", "no files uploaded", nil)
	}

	batchID := uuid.NewString()
	log := o.logger.With(logging.String(logging.FieldBatchID, batchID))
	log.Info("batch started", logging.Int("files", len(files)))

	stored := make([]string, len(files))
	for i, file := range files {
		name, err := o.intoStorage(file)
		if err != nil {
			return nil, err
		}
		stored[i] = name
	}

	records := make([]dataset.Record, len(files))
	sem := make(chan struct{}, o.maxConcurrent)
	var wg sync.WaitGroup
	for i := range files {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			name := stored[i]
			fields, err := o.gen.Generate(ctx, filepath.Join(o.storageDir, name))
			if err != nil {
				log.Warn("generation failed",
					logging.String(logging.FieldImage, name),
					logging.Error(err),
				)
				fields = generator.ErrorRecord()
			}
			records[i] = dataset.Record{Image: name, Fields: fields}
		}(i)
	}
	wg.Wait()

	errorCount := 0
	for _, record := range records {
		if record.Fields["error"] == generator.ErrorMessage {
			errorCount++
		}
	}

	datasetPath, err := o.store.Write(dataset.FromRecords(records))
	if err != nil {
		return nil, err
	}

	if o.journal != nil {
		if _, err := o.journal.RecordBatch(ctx, batchID, datasetPath, len(files), errorCount); err != nil {
			// The dataset is on disk and reachable through the directory
			// scan fallback, so a journal failure does not fail the batch.
			log.Warn("batch journal update failed", logging.Error(err))
		}
	}

	log.Info("batch completed",
		logging.String(logging.FieldDataset, datasetPath),
		logging.Int("images", len(files)),
		logging.Int("failures", errorCount),
	)

	return &Result{
		BatchID:     batchID,
		DatasetPath: datasetPath,
		ImageCount:  len(files),
		ErrorCount:  errorCount,
	}, nil
}

// intoStorage renames a received file into the storage directory under
// a unique timestamp-prefixed name and returns that name.
func (o *Orchestrator) intoStorage(file UploadedFile) (string, error) {
	base := sanitizeName(file.OriginalName)

	var dest string
	var name string
	for ts := o.now(); ; ts = ts.Add(time.Millisecond) {
		name = fmt.Sprintf("%d_%s", ts.UnixMilli(), base)
		dest = filepath.Join(o.storageDir, name)
		if _, err := os.Stat(dest); errors.Is(err, fs.ErrNotExist) {
			break
		}
	}

	if err := os.Rename(file.TempPath, dest); err != nil {
		return "", faults.Wrap(faults.ErrStorage, "orchestrator", "store upload", file.OriginalName, err)
	}
	return name, nil
}

func sanitizeName(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	base = strings.TrimSpace(base)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "image"
	}
	return base
}
