package internal

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"ClamBatch/internal/history"
)

// WriteSummary prints the end-of-run report. Interrupted runs are labelled so
// partial totals are never mistaken for a full scan.
func WriteSummary(w io.Writer, res Result) {
	title := "Scan finished"
	switch {
	case res.Stopped:
		title = "Scan STOPPED (partial results)"
	case res.Cancelled:
		title = "Scan INTERRUPTED (partial results)"
	}
	p := Progress{Total: res.Total, Processed: res.Processed, Elapsed: res.Elapsed}
	fmt.Fprintf(w,
		"\n======= %s in %s =======\nTotal files found: %d\nTotal files scanned: %d\nFiles per second: %.2f\nTotal infected files: %d\nBatch errors: %d\n",
		title, res.Elapsed.Round(time.Millisecond), res.Total, res.Processed, p.Rate(), len(res.Infections), res.BatchErrors,
	)
	if len(res.Infections) > 0 {
		fmt.Fprintln(w, "Infected files:")
		for _, inf := range res.Infections {
			fmt.Fprintf(w, "- %s\n  %s\n", inf.Path, inf.Message)
		}
	}
}

// WriteXLSX stores the run summary and infection list in a workbook.
func WriteXLSX(path string, res Result) error {
	f := excelize.NewFile()
	defer f.Close()

	const summary, infected = "Summary", "Infections"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return err
	}
	rows := [][]any{
		{"Run", res.RunID},
		{"Scanner", res.Command.Name},
		{"Total files", res.Total},
		{"Scanned files", res.Processed},
		{"Infected files", len(res.Infections)},
		{"Batch errors", res.BatchErrors},
		{"Complete", res.Complete()},
		{"Elapsed", res.Elapsed.Round(time.Millisecond).String()},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(infected); err != nil {
		return err
	}
	if err := f.SetSheetRow(infected, "A1", &[]any{"Path", "Signature"}); err != nil {
		return err
	}
	for i, inf := range res.Infections {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(infected, cell, &[]any{inf.Path, inf.Message}); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(infected, "A", "A", 80); err != nil {
		return err
	}
	return f.SaveAs(path)
}

// RecordHistory appends the run to the SQLite history at dbPath.
func RecordHistory(ctx context.Context, dbPath string, res Result) error {
	store, err := history.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Record(ctx, historyRun(res))
}

func historyRun(res Result) history.Run {
	run := history.Run{
		ID:        res.RunID,
		StartedAt: time.Now().Add(-res.Elapsed),
		Scanner:   res.Command.Name,
		Total:     res.Total,
		Processed: res.Processed,
		Infected:  len(res.Infections),
		Errors:    res.BatchErrors,
		Cancelled: !res.Complete(),
		Elapsed:   res.Elapsed,
	}
	for _, inf := range res.Infections {
		run.Infections = append(run.Infections, history.Infection{Path: inf.Path, Message: inf.Message})
	}
	return run
}
