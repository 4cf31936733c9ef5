package fs

// Holders CSV persistence
// The whole file is written to a temp file next to the target and renamed over it,
// so readers only ever see a complete previous export or a complete new one

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"dog-holders/internal/features/holders"
)

// DefaultHoldersFile is the export file name
const DefaultHoldersFile = "DOG_Holders.csv"

var holdersHeader = []string{"Rank", "Address", "Percentage", "Balance"}

// CSVWriter implements holders.Writer.
type CSVWriter struct {
	path string
}

func NewCSVWriter(path string) *CSVWriter {
	if path == "" {
		path = DefaultHoldersFile
	}
	return &CSVWriter{path: path}
}

func (w *CSVWriter) Path() string {
	return w.path
}

// Write replaces the target file with header + rows.
func (w *CSVWriter) Write(rows []holders.RankedRow) error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if err := encodeHolders(tmp, rows); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode holders csv: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync holders csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close holders csv: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to chmod holders csv: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		return fmt.Errorf("failed to save holders csv: %w", err)
	}
	return nil
}

func encodeHolders(out io.Writer, rows []holders.RankedRow) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(holdersHeader); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			strconv.Itoa(row.Rank),
			row.Address,
			row.Percentage,
			strconv.FormatInt(row.Balance, 10),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadHoldersCSV loads an export written by CSVWriter.
func ReadHoldersCSV(path string) ([]holders.RankedRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open holders csv: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = len(holdersHeader)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("holders csv %s is empty", path)
		}
		return nil, fmt.Errorf("failed to read holders csv header: %w", err)
	}
	for i, name := range holdersHeader {
		if header[i] != name {
			return nil, fmt.Errorf("unexpected holders csv header %v", header)
		}
	}

	var rows []holders.RankedRow
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read holders csv: %w", err)
		}

		line, _ := cr.FieldPos(0)
		rank, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid rank %q: %w", line, record[0], err)
		}
		balance, err := strconv.ParseInt(record[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid balance %q: %w", line, record[3], err)
		}
		rows = append(rows, holders.RankedRow{
			Rank:       rank,
			Address:    record[1],
			Percentage: record[2],
			Balance:    balance,
		})
	}
	return rows, nil
}
