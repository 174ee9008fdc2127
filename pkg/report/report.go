// Package report exports validation reports as JSON, XLSX and console text.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ekaya-inc/ekaya-macro/pkg/validation"
)

// dateLayout names report files by the UTC day a run finished.
const dateLayout = "2006-01-02"

// FileName returns the base name of a report file for a run finished at t.
func FileName(t time.Time, ext string) string {
	return "validation-report-" + t.UTC().Format(dateLayout) + ext
}

// WriteJSON writes r as indented JSON into dir, creating dir when missing.
// A report of the same day is overwritten. Returns the written path.
func WriteJSON(dir string, r *validation.Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	path, err := prepare(dir, FileName(r.FinishedAt, ".json"))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func prepare(dir, name string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	return filepath.Join(dir, name), nil
}
