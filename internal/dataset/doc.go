// Package dataset owns the CSV datasets on disk: building a dataset
// from a batch of generated records, selecting the current dataset,
// and the read-modify-write row editor.
//
// Datasets are immutable snapshots named csv_<timestamp>.csv with a
// fixed-width millisecond timestamp, so lexicographic filename order is
// chronological order and the greatest name is the current dataset.
package dataset
