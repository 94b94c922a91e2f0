package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// Encode serializes the dataset as CSV, header first, rows in header
// column order. Quotes inside values are doubled per RFC 4180.
func Encode(d Dataset) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(d.Header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(d.Header))
	for i, row := range d.Rows {
		for j, column := range d.Header {
			record[j] = row[column]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a CSV dataset: one header row, then one Row per record.
func Decode(r io.Reader) (Dataset, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return Dataset{}, fmt.Errorf("csv dataset is empty")
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("read header: %w", err)
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		row := make(Row, len(header))
		for i, column := range header {
			if i < len(record) {
				row[column] = record[i]
			}
		}
		rows = append(rows, row)
	}

	return Dataset{Header: header, Rows: rows}, nil
}
