// Package report renders and persists run reports.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gh-nvat/conda-envsync/src/pkg/models"

	log "github.com/sirupsen/logrus"
)

var logger *log.Entry = log.New().WithFields(log.Fields{
	"package": "report",
})

const (
	REPORT_FILE_PREFIX    = "envsync-report"
	REPORT_TIME_LAYOUT    = "20060102-150405"
	JSON_REPORT_FILE_NAME = "report.json"
)

// Renderer turns a finalized run report into its persisted forms
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render produces the flat text report: header, totals, then one block per
// environment sorted by name for reproducibility.
func (r *Renderer) Render(rep *models.RunReport) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "conda-envsync %s report\n", rep.Mode)
	sb.WriteString(strings.Repeat("=", len(rep.Mode)+20) + "\n")
	fmt.Fprintf(&sb, "started:  %s\n", rep.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "finished: %s\n", rep.FinishedAt.Format(time.RFC3339))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "environments processed: %d\n", rep.TotalProcessed)
	fmt.Fprintf(&sb, "succeeded: %d (%.1f%%)\n", rep.SuccessCount, rep.SuccessRate()*100)
	fmt.Fprintf(&sb, "failed: %d\n", rep.FailedCount())
	fmt.Fprintf(&sb, "timed out: %d\n", rep.TimeoutCount())
	fmt.Fprintf(&sb, "complex: %d, standard: %d\n", len(rep.ComplexEnvironments), len(rep.StandardEnvironments))
	fmt.Fprintf(&sb, "created: %d, updated: %d\n", len(rep.CreatedEnvironments), len(rep.UpdatedEnvironments))
	sb.WriteString("\n")

	names := make([]string, 0, len(rep.Outcomes))
	for name := range rep.Outcomes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		outcome := rep.Outcomes[name]
		fmt.Fprintf(&sb, "%s: status=%s operation=%s type=%s\n",
			name, outcome.Status, outcome.Operation, outcome.Complexity)
		if outcome.Status == models.StatusSuccess {
			continue
		}
		category, advice := SuggestionFor(outcome.Diagnostic)
		fmt.Fprintf(&sb, "  suggestion[%s]: %s\n", category, advice)
		if outcome.Diagnostic != "" {
			for _, line := range strings.Split(outcome.Diagnostic, "\n") {
				fmt.Fprintf(&sb, "  | %s\n", line)
			}
		}
	}

	return sb.String()
}

// Persist writes the rendered report to a timestamped file under dir and
// returns the file path. One report file per run, plain UTF-8 text.
func (r *Renderer) Persist(rep *models.RunReport, dir string) (string, error) {
	logger.Info("Persist: starting...")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	fileName := fmt.Sprintf("%s-%s.txt", REPORT_FILE_PREFIX, rep.FinishedAt.Format(REPORT_TIME_LAYOUT))
	filePath := filepath.Join(dir, fileName)
	if err := os.WriteFile(filePath, []byte(r.Render(rep)), 0644); err != nil {
		logger.WithField("filePath", filePath).WithField("error", err).Error("Failed to write report to file")
		return "", err
	}

	logger.WithField("filePath", filePath).Info("Written report to file")
	return filePath, nil
}

// ExportJSON writes the structured report to report.json under dir
func (r *Renderer) ExportJSON(rep *models.RunReport, dir string) error {
	logger.Info("ExportJSON: starting...")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	resultsJson, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	filePath := filepath.Join(dir, JSON_REPORT_FILE_NAME)
	if err := os.WriteFile(filePath, resultsJson, 0644); err != nil {
		logger.WithField("filePath", filePath).WithField("error", err).Error("Failed to write report data to file")
		return err
	}

	logger.WithField("filePath", filePath).Info("Written report data to file")
	return nil
}
