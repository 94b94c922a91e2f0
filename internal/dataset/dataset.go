package dataset

import "sort"

// ImageColumn is the key column present in every dataset. Its value is
// the stored (timestamp-prefixed) image filename.
const ImageColumn = "Image"

// Row maps column names to values.
type Row map[string]string

// Dataset is one CSV snapshot: a header plus rows in header column order.
type Dataset struct {
	Header []string
	Rows   []Row
}

// Record is one generated result keyed by its stored image filename.
type Record struct {
	Image  string
	Fields map[string]string
}

// FromRecords builds a dataset from a batch of generated records.
//
// The header is the Image column followed by the union of field names
// across all records, so a batch mixing successful
// records with error sentinels still produces one consistent schema.
// Records are ordered by stored filename, which sorts chronologically.
func FromRecords(records []Record) Dataset {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Image < sorted[j].Image })

	header := []string{ImageColumn}
	seen := map[string]struct{}{ImageColumn: {}}
	for _, record := range sorted {
		keys := make([]string, 0, len(record.Fields))
		for key := range record.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			header = append(header, key)
		}
	}

	rows := make([]Row, 0, len(sorted))
	for _, record := range sorted {
		row := make(Row, len(header))
		row[ImageColumn] = record.Image
		for key, value := range record.Fields {
			if key == ImageColumn {
				continue
			}
			row[key] = value
		}
		rows = append(rows, row)
	}

	return Dataset{Header: header, Rows: rows}
}

// Lookup returns the index of the row whose Image column equals image,
// or -1 when no row matches.
func (d Dataset) Lookup(image string) int {
	for i, row := range d.Rows {
		if row[ImageColumn] == image {
			return i
		}
	}
	return -1
}

// Merge applies updates onto the row at index. Updated values win, the
// row retains columns absent from updates, and keys outside the header
// are dropped.
func (d Dataset) Merge(index int, updates Row) {
	row := d.Rows[index]
	for _, column := range d.Header {
		if value, ok := updates[column]; ok {
			row[column] = value
		}
	}
}
