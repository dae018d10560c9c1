package services

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/swisscast/kaltura-migration/internal/models"
	"github.com/swisscast/kaltura-migration/internal/store"
)

// Column orders are part of the exported report format and must not
// change.
var (
	findingHeader = []string{"tblname", "colname", "resid", "url", "replaced", "course"}
	logHeader     = []string{"execution", "testing", "level", "time", "entry", "message", "code", "id1", "id2"}
)

// Exporter renders findings and audit logs as CSV and XLSX reports.
type Exporter struct {
	store *store.Store
}

func NewExporter(st *store.Store) *Exporter {
	return &Exporter{store: st}
}

func findingRow(f models.Finding) []string {
	return []string{
		f.Table,
		f.Column,
		strconv.FormatInt(f.RecordID, 10),
		f.URL,
		strconv.FormatBool(f.Replaced),
		strconv.FormatInt(f.Course, 10),
	}
}

func logRow(e models.LogEntry) []string {
	return []string{
		strconv.FormatInt(e.Execution, 10),
		strconv.FormatBool(e.Testing),
		strconv.Itoa(e.Level),
		strconv.FormatInt(e.Time, 10),
		strconv.FormatInt(e.Entry, 10),
		e.Message,
		e.Code,
		e.ID1,
		e.ID2,
	}
}

// FindingsCSV writes all findings as CSV: a header row of column names
// then one row per record.
func (e *Exporter) FindingsCSV(ctx context.Context, w io.Writer) error {
	findings, err := e.store.Findings().List(ctx)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(findingHeader); err != nil {
		return err
	}
	for _, f := range findings {
		if err := cw.Write(findingRow(f)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LogsCSV writes the audit log as CSV, all executions in insert order.
func (e *Exporter) LogsCSV(ctx context.Context, w io.Writer) error {
	entries, err := e.store.Logs().List(ctx, 0)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(logHeader); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := cw.Write(logRow(entry)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Workbook renders findings and logs as a two-sheet XLSX workbook for
// operators who review the migration in a spreadsheet.
func (e *Exporter) Workbook(ctx context.Context) (*excelize.File, error) {
	findings, err := e.store.Findings().List(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := e.store.Logs().List(ctx, 0)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const findingsSheet = "Findings"
	f.SetSheetName(f.GetSheetName(0), findingsSheet)
	if err := writeSheet(f, findingsSheet, findingHeader, len(findings), func(i int) []string {
		return findingRow(findings[i])
	}); err != nil {
		return nil, err
	}

	const logsSheet = "Logs"
	if _, err := f.NewSheet(logsSheet); err != nil {
		return nil, err
	}
	if err := writeSheet(f, logsSheet, logHeader, len(entries), func(i int) []string {
		return logRow(entries[i])
	}); err != nil {
		return nil, err
	}
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows int, row func(int) []string) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	for i := 0; i < rows; i++ {
		if err := setRow(f, sheet, i+2, row(i)); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(sheet, cell, &cells)
}
