package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/i474232898/itinerary-elevation/internal/elevation"
)

// DefaultFileName is used for reports that belong to no named itinerary.
const DefaultFileName = "elevation_results.json"

// FileWriter writes every report as indented JSON into Dir, one file per
// itinerary, replacing the previous report of that itinerary.
type FileWriter struct {
	Dir string
}

func NewFileWriter(dir string) *FileWriter {
	return &FileWriter{Dir: dir}
}

// Path returns the file a report for itinerary is written to.
func (w *FileWriter) Path(itinerary string) string {
	if itinerary == "" {
		return filepath.Join(w.Dir, DefaultFileName)
	}
	return filepath.Join(w.Dir, itinerary+"_elevation.json")
}

// Publish implements elevation.ReportSink.
func (w *FileWriter) Publish(ctx context.Context, report elevation.ElevationReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	path := w.Path(report.Itinerary)
	tmp, err := os.CreateTemp(w.Dir, ".report-*.json")
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write report file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}
	return nil
}
