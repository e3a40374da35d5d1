package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"taskdeck/internal/logger"
	"taskdeck/internal/model"
)

// ImportReport summarizes a bulk import. Errors holds one line per failed item.
type ImportReport struct {
	Created int      `json:"created"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// Import reads a JSON array of task objects and creates them one by one, in file order.
// A failed item does not stop the import; an expired session does.
func (s *TaskService) Import(ctx context.Context, r io.Reader) (ImportReport, error) {
	var items []model.TaskFields
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		s.metrics.Mutation("import", statusInvalid)
		s.toasts.Error("Invalid JSON")
		return ImportReport{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}

	var report ImportReport
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return s.finishImport(ctx, report), err
		}

		fields, err := s.prepare(item)
		if err == nil {
			_, err = s.store.Create(ctx, fields)
		}
		if err == nil {
			report.Created++
			continue
		}

		report.Failed++
		report.Errors = append(report.Errors, fmt.Sprintf("item %d (%q): %s", i+1, item.Title, UserMessage(err)))
		if isSessionExpired(err) {
			s.fail(ctx, "import", err)
			s.metrics.Imported(statusSuccess, report.Created)
			s.metrics.Imported("failed", report.Failed)
			return report, fmt.Errorf("import aborted after %d items: %w", i+1, err)
		}
		logger.Warn(ctx, "import item failed", "item", i+1, "err", err)
	}

	return s.finishImport(ctx, report), nil
}

func (s *TaskService) finishImport(ctx context.Context, report ImportReport) ImportReport {
	s.metrics.Imported(statusSuccess, report.Created)
	s.metrics.Imported("failed", report.Failed)

	switch {
	case report.Failed == 0:
		s.metrics.Mutation("import", statusSuccess)
		s.toasts.Success("Import Successful!")
	default:
		s.metrics.Mutation("import", "partial")
		s.toasts.Warning(fmt.Sprintf("Imported %d of %d tasks", report.Created, report.Created+report.Failed))
	}
	if report.Created > 0 {
		s.reconcile(ctx)
	}
	return report
}

var exportHeader = []string{"Title", "Due", "Notes", "Category", "Priority"}

// Export writes the cached tasks as CSV, in cache order.
func (s *TaskService) Export(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	for _, t := range s.cache.Snapshot() {
		due := ""
		if t.HasDueDate() {
			due = t.DueDate.UTC().Format(time.RFC3339)
		}
		row := []string{t.Title, due, t.Notes, string(t.Category), t.Priority}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write export row %s: %w", t.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush export: %w", err)
	}
	s.metrics.Mutation("export", statusSuccess)
	return nil
}
