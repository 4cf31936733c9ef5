package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunSummary is the machine-readable record of one export, saved next to the CSV
// so a host job can pick up FailedOffsets and re-run just those ranges.
type RunSummary struct {
	StartRank     int       `json:"startRank"`
	NumHolders    int       `json:"numHolders"`
	RowsWritten   int       `json:"rowsWritten"`
	NextRank      int       `json:"nextRank"`
	Attempts      int       `json:"attempts"`
	FailedOffsets []int     `json:"failedOffsets"`
	CSVFile       string    `json:"csvFile"`
	FinishedAt    time.Time `json:"finishedAt"`
	DurationMs    int64     `json:"durationMs"`
}

func SaveRunSummary(path string, summary RunSummary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}
	if summary.FailedOffsets == nil {
		summary.FailedOffsets = []int{} // [] rather than null for consumers
	}

	jsonData, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to save run summary: %w", err)
	}
	return nil
}
