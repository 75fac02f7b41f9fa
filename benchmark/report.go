package benchmark

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
)

// NotAvailable is the sentinel rendered for (backend, operation) pairs
// that have no measurement.
const NotAvailable = "N/A"

// ComparativeReport is a read-only cross-backend merge of benchmark
// runs: one row per operation label, one duration/cpu/ram column triple
// per backend.
type ComparativeReport struct {
	Backends []string
	Rows     []ReportRow
}

type ReportRow struct {
	Operation string
	// Cells holds one cell per backend, ordered as Backends.
	Cells []ReportCell
}

type ReportCell struct {
	DurationS string
	CPUAvg    string
	RAMAvgMB  string
}

func notAvailableCell() ReportCell {
	return ReportCell{
		DurationS: NotAvailable,
		CPUAvg:    NotAvailable,
		RAMAvgMB:  NotAvailable,
	}
}

// BuildComparative merges results into a report. The row set is the
// sorted union of labels over successful runs; backends without an
// entry for a label, or whose run failed outright, get the sentinel
// rather than an absent cell.
func BuildComparative(results map[string]BackendResult) *ComparativeReport {
	backends := make([]string, 0, len(results))
	for name := range results {
		backends = append(backends, name)
	}
	sort.Strings(backends)

	labelSet := make(map[string]struct{})
	for _, r := range results {
		if !r.OK() {
			continue
		}
		for _, label := range r.Run.Labels() {
			labelSet[label] = struct{}{}
		}
	}
	labels := make([]string, 0, len(labelSet))
	for label := range labelSet {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	report := &ComparativeReport{Backends: backends}
	for _, label := range labels {
		row := ReportRow{Operation: label, Cells: make([]ReportCell, 0, len(backends))}
		for _, backend := range backends {
			cell := notAvailableCell()
			if r := results[backend]; r.OK() {
				if entry, ok := r.Run.Get(label); ok {
					cell = ReportCell{
						DurationS: strconv.FormatFloat(entry.DurationSeconds, 'f', 4, 64),
						CPUAvg:    strconv.FormatFloat(entry.Resources.CPUAvg, 'f', 2, 64),
						RAMAvgMB:  strconv.FormatFloat(entry.Resources.MemAvgMB, 'f', 2, 64),
					}
				}
			}
			row.Cells = append(row.Cells, cell)
		}
		report.Rows = append(report.Rows, row)
	}
	return report
}

// WriteCSV renders the report with {backend}_duration_s,
// {backend}_cpu_avg and {backend}_ram_mb column groups.
func (r *ComparativeReport) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"Operation"}
	for _, backend := range r.Backends {
		header = append(header,
			backend+"_duration_s",
			backend+"_cpu_avg",
			backend+"_ram_mb",
		)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, row := range r.Rows {
		record := make([]string, 0, 1+3*len(row.Cells))
		record = append(record, row.Operation)
		for _, cell := range row.Cells {
			record = append(record, cell.DurationS, cell.CPUAvg, cell.RAMAvgMB)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
