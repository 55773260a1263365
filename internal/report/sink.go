// Package report delivers finished reports to their destinations.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/DeafMist/tweet-radar/internal/models"
)

// Envelope carries a report together with the run that produced it.
type Envelope struct {
	RunID       string        `json:"run_id"`
	Term        string        `json:"term"`
	GeneratedAt time.Time     `json:"generated_at"`
	Report      models.Report `json:"report"`
}

// Sink receives every report produced by the analyzer.
type Sink interface {
	Publish(ctx context.Context, env Envelope) error
}

// FileSink keeps the latest report in a single JSON file.
type FileSink struct {
	Path string
}

// NewFileSink returns a sink writing to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

// Publish replaces the file with the report. The write goes through a
// temporary file so readers never observe a partial document.
func (s *FileSink) Publish(_ context.Context, env Envelope) error {
	data, err := json.Marshal(env.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*.json")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("replace report: %w", err)
	}
	return nil
}

// ReadFile loads a report previously written by FileSink.
func ReadFile(path string) (models.Report, error) {
	var r models.Report
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("read report: %w", err)
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}
