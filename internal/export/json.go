package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sadopc/itrack/internal/store"
)

type jsonExport struct {
	ExportedAt string      `json:"exported_at"`
	Count      int         `json:"count"`
	Entries    []jsonEntry `json:"entries"`
}

type jsonEntry struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	CategoryID  string `json:"category_id"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time,omitempty"`
	DurationSec int64  `json:"duration_seconds"`
	Duration    string `json:"duration"`
	Status      string `json:"status"`
}

func EntriesToJSON(entries []store.TimeEntry, categories []store.Category, now time.Time, path string) error {
	export := jsonExport{
		ExportedAt: now.UTC().Format(time.RFC3339),
		Count:      len(entries),
	}

	names := byID(categories)
	for _, e := range entries {
		secs := wholeSeconds(e.LiveDuration(now))
		export.Entries = append(export.Entries, jsonEntry{
			ID:          e.ID,
			Category:    categoryName(names, e.CategoryID),
			CategoryID:  e.CategoryID,
			StartTime:   e.StartTime.Local().Format(time.RFC3339),
			EndTime:     formatEnd(e.EndTime),
			DurationSec: secs,
			Duration:    FormatDuration(secs),
			Status:      status(e),
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
