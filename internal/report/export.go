// Package report serializes asset rows as CSV.
package report

import (
	"bufio"
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"

	"fleetreport/internal/apperr"
	"fleetreport/internal/stats"
)

// DefaultFilename is the name the report is downloaded as.
const DefaultFilename = "Asset_Report.csv"

// Header is the report's column order.
var Header = []string{
	"License plate number",
	"Distance",
	"Number of Trips Completed",
	"Average Speed",
	"Transporter Name",
	"Number of Speed Violations",
}

type Exporter struct {
	// RejectEmpty makes an empty row set fail with apperr.ErrEmptyReport
	// instead of producing a header-only report.
	RejectEmpty bool
}

// Write emits the header followed by one record per row.
func (e *Exporter) Write(w io.Writer, rows []stats.AssetRow) error {
	if len(rows) == 0 && e.RejectEmpty {
		return apperr.ErrEmptyReport
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(record(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the report to path, replacing any existing file.
func (e *Exporter) WriteFile(path string, rows []stats.AssetRow) error {
	if len(rows) == 0 && e.RejectEmpty {
		return apperr.ErrEmptyReport
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	buf := bufio.NewWriter(file)
	if err := e.Write(buf, rows); err != nil {
		_ = file.Close()
		return err
	}
	if err := buf.Flush(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func record(row stats.AssetRow) []string {
	return []string{
		row.Plate,
		formatFloat(row.Distance),
		strconv.Itoa(row.TripsCompleted),
		formatFloat(row.AverageSpeed),
		row.TransporterName,
		formatFloat(row.SpeedViolations),
	}
}

// formatFloat uses the shortest exact representation; NaN becomes an empty
// cell.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
