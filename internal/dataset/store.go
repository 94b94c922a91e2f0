package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"snapsheet/internal/faults"
)

const datasetPrefix = "csv_"

// Store manages the flat directory of CSV dataset files. A single
// mutex serializes read-modify-write row edits so concurrent saves
// within one process cannot lose each other's updates.
type Store struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

// NewStore creates a store over the given storage directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// Name returns the dataset filename for the given timestamp. The
// millisecond value is zero-padded to a fixed width so lexicographic
// filename order matches chronological order.
func Name(ts time.Time) string {
	return fmt.Sprintf("%s%013d.csv", datasetPrefix, ts.UnixMilli())
}

// List returns all dataset filenames in ascending (chronological) order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, faults.Wrap(faults.ErrStorage, "dataset", "list", "", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".csv") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// LatestPath returns the path of the current dataset, the one with the
// lexicographically greatest filename.
func (s *Store) LatestPath() (string, error) {
	names, err := s.List()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", faults.Wrap(faults.ErrNotFound, "dataset", "latest", "no csv dataset exists", nil)
	}
	return filepath.Join(s.dir, names[len(names)-1]), nil
}

// Write materializes a new dataset file and returns its path. The file
// lands atomically via a temp file and rename so readers never observe
// a partial dataset.
func (s *Store) Write(d Dataset) (string, error) {
	encoded, err := Encode(d)
	if err != nil {
		return "", faults.Wrap(faults.ErrStorage, "dataset", "encode", "", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var path string
	for ts := s.now(); ; ts = ts.Add(time.Millisecond) {
		path = filepath.Join(s.dir, Name(ts))
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			break
		}
	}

	if err := writeFileAtomic(path, encoded); err != nil {
		return "", faults.Wrap(faults.ErrStorage, "dataset", "write", "", err)
	}
	return path, nil
}

// Read loads a dataset file fully into memory.
func (s *Store) Read(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Dataset{}, faults.Wrap(faults.ErrNotFound, "dataset", "read", "dataset file missing", err)
		}
		return Dataset{}, faults.Wrap(faults.ErrStorage, "dataset", "read", "", err)
	}
	d, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Dataset{}, faults.Wrap(faults.ErrStorage, "dataset", "decode", "", err)
	}
	return d, nil
}

// UpdateRow merges updates into the row of path's dataset whose Image
// column matches, then rewrites the whole file in the original header
// order. The updates must carry the Image column.
func (s *Store) UpdateRow(path string, updates Row) error {
	image, ok := updates[ImageColumn]
	if !ok || strings.TrimSpace(image) == "" {
		return faults.Wrap(faults.ErrValidation, "dataset", "update row", "Image column is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.Read(path)
	if err != nil {
		return err
	}

	hasImageColumn := false
	for _, column := range d.Header {
		if column == ImageColumn {
			hasImageColumn = true
			break
		}
	}
	if !hasImageColumn {
		return faults.Wrap(faults.ErrStorage, "dataset", "update row", "Image column not found in csv", nil)
	}

	index := d.Lookup(image)
	if index < 0 {
		return faults.Wrap(faults.ErrNotFound, "dataset", "update row", "row not found", nil)
	}
	d.Merge(index, updates)

	encoded, err := Encode(d)
	if err != nil {
		return faults.Wrap(faults.ErrStorage, "dataset", "encode", "", err)
	}
	if err := writeFileAtomic(path, encoded); err != nil {
		return faults.Wrap(faults.ErrStorage, "dataset", "rewrite", "", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".csv-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
