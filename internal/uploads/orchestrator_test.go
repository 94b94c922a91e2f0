package uploads

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"snapsheet/internal/catalog"
	"snapsheet/internal/dataset"
	"snapsheet/internal/faults"
	"snapsheet/internal/generator"
	"snapsheet/internal/logging"
	"snapsheet/internal/testsupport"
)

type fakeGenerator struct {
	fields  map[string]map[string]string
	failFor string

	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeGenerator) Generate(_ context.Context, imagePath string) (map[string]string, error) {
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if current <= peak || f.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	name := filepath.Base(imagePath)
	if f.failFor != "" && strings.HasSuffix(name, f.failFor) {
		return nil, faults.Wrap(faults.ErrExternalTool, "generator", "generate", "stub failure", nil)
	}
	for suffix, fields := range f.fields {
		if strings.HasSuffix(name, suffix) {
			return fields, nil
		}
	}
	return map[string]string{"Title": "Generated"}, nil
}

func newOrchestrator(t *testing.T, gen generator.Client, withJournal bool) (*Orchestrator, *dataset.Store, *catalog.Store) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := dataset.NewStore(cfg.Paths.StorageDir)

	var journal *catalog.Store
	if withJournal {
		var err error
		journal, err = catalog.Open(cfg)
		if err != nil {
			t.Fatalf("open catalog: %v", err)
		}
		t.Cleanup(func() { _ = journal.Close() })
	}

	return New(cfg, store, journal, gen, logging.NewNop()), store, journal
}

func seedBatch(t *testing.T, orch *Orchestrator, names ...string) []UploadedFile {
	t.Helper()

	tempDir := filepath.Dir(orch.storageDir)
	files := make([]UploadedFile, 0, len(names))
	for _, name := range names {
		files = append(files, UploadedFile{
			TempPath:     testsupport.SeedUpload(t, tempDir, "tmp-"+name),
			OriginalName: name,
		})
	}
	return files
}

func TestProcessProducesRowPerImage(t *testing.T) {
	gen := &fakeGenerator{fields: map[string]map[string]string{
		"a.png": {"Title": "Red Shoe", "Desc": "A red shoe"},
		"b.png": {"Title": "Straw Hat", "Desc": "A straw hat"},
	}}
	orch, store, _ := newOrchestrator(t, gen, false)

	result, err := orch.Process(context.Background(), seedBatch(t, orch, "a.png", "b.png", "c.png"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.ImageCount != 3 || result.ErrorCount != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	d, err := store.Read(result.DatasetPath)
	if err != nil {
		t.Fatalf("read dataset: %v", err)
	}
	if len(d.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(d.Rows))
	}
	seen := map[string]bool{}
	for _, row := range d.Rows {
		image := row[dataset.ImageColumn]
		if seen[image] {
			t.Fatalf("duplicate image key %q", image)
		}
		seen[image] = true
		if !strings.Contains(image, "_") {
			t.Fatalf("stored name missing timestamp prefix: %q", image)
		}
	}
}

func TestProcessPartialFailureKeepsSiblings(t *testing.T) {
	gen := &fakeGenerator{
		fields:  map[string]map[string]string{"a.png": {"Title": "Red Shoe", "Desc": "A red shoe"}},
		failFor: "b.png",
	}
	orch, store, _ := newOrchestrator(t, gen, false)

	result, err := orch.Process(context.Background(), seedBatch(t, orch, "a.png", "b.png"))
	if err != nil {
		t.Fatalf("one bad image must not fail the batch: %v", err)
	}
	if result.ErrorCount != 1 {
		t.Fatalf("error count = %d, want 1", result.ErrorCount)
	}

	d, err := store.Read(result.DatasetPath)
	if err != nil {
		t.Fatalf("read dataset: %v", err)
	}
	if len(d.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(d.Rows))
	}

	var successRow, errorRow dataset.Row
	for _, row := range d.Rows {
		if row["error"] == generator.ErrorMessage {
			errorRow = row
		} else {
			successRow = row
		}
	}
	if errorRow == nil {
		t.Fatalf("sentinel row missing: %v", d.Rows)
	}
	if successRow["Title"] != "Red Shoe" {
		t.Fatalf("success row lost fields: %v", successRow)
	}
	if successRow["error"] != "" {
		t.Fatalf("success row should have empty error cell: %v", successRow)
	}
}

func TestProcessEmptyBatchRejected(t *testing.T) {
	orch, _, _ := newOrchestrator(t, &fakeGenerator{}, false)

	_, err := orch.Process(context.Background(), nil)
	if !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProcessRecordsJournal(t *testing.T) {
	orch, _, journal := newOrchestrator(t, &fakeGenerator{}, true)

	result, err := orch.Process(context.Background(), seedBatch(t, orch, "a.png"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	current, err := journal.CurrentDataset(context.Background())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current != result.DatasetPath {
		t.Fatalf("pointer = %q, want %q", current, result.DatasetPath)
	}

	batches, err := journal.ListBatches(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(batches) != 1 || batches[0].BatchID != result.BatchID {
		t.Fatalf("journal entry wrong: %v", batches)
	}
}

func TestProcessBoundsConcurrency(t *testing.T) {
	gen := &fakeGenerator{}
	orch, _, _ := newOrchestrator(t, gen, false)
	orch.maxConcurrent = 2

	names := make([]string, 8)
	for i := range names {
		names[i] = string(rune('a'+i)) + ".png"
	}
	if _, err := orch.Process(context.Background(), seedBatch(t, orch, names...)); err != nil {
		t.Fatalf("process: %v", err)
	}

	if peak := gen.peak.Load(); peak > 2 {
		t.Fatalf("worker pool exceeded bound: peak %d", peak)
	}
}

func TestProcessSequentialBatchesAdvanceLatest(t *testing.T) {
	orch, store, _ := newOrchestrator(t, &fakeGenerator{}, false)

	var lastPath string
	for i := 0; i < 3; i++ {
		result, err := orch.Process(context.Background(), seedBatch(t, orch, "a.png"))
		if err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
		lastPath = result.DatasetPath
	}

	latest, err := store.LatestPath()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest != lastPath {
		t.Fatalf("latest = %q, want most recent batch %q", latest, lastPath)
	}
}
