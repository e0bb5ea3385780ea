package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"fleetreport/internal/gps"
	"fleetreport/internal/table"
)

// Trail column names.
const (
	ColumnTime       = "tis"
	ColumnLat        = "lat"
	ColumnLon        = "lon"
	ColumnSpeed      = "spd"
	ColumnViolations = "osf"
	ColumnPlate      = "lic_plate_no"
)

// TrailColumns lists the columns every trail file must carry.
var TrailColumns = []string{ColumnTime, ColumnLat, ColumnLon, ColumnSpeed, ColumnViolations, ColumnPlate}

func parseTrail(source string, r io.Reader) (gps.Trail, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return gps.Trail{}, fmt.Errorf("empty trail file")
		}
		return gps.Trail{}, err
	}
	cols, err := table.Index(header, TrailColumns...)
	if err != nil {
		return gps.Trail{}, err
	}

	trail := gps.Trail{Source: source}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return gps.Trail{}, err
		}
		line++

		p, err := parsePoint(cols, record)
		if err != nil {
			return gps.Trail{}, fmt.Errorf("line %d: %w", line, err)
		}
		trail.Points = append(trail.Points, p)
	}

	gps.SortByTime(trail.Points)
	return trail, nil
}

func parsePoint(cols table.Columns, record []string) (gps.TrailPoint, error) {
	var p gps.TrailPoint
	var err error

	if p.Time, err = parseEpoch(cols.Get(record, ColumnTime)); err != nil {
		return p, fmt.Errorf("%s: %w", ColumnTime, err)
	}
	if p.Lat, err = parseCoordinate(cols.Get(record, ColumnLat)); err != nil {
		return p, fmt.Errorf("%s: %w", ColumnLat, err)
	}
	if p.Lon, err = parseCoordinate(cols.Get(record, ColumnLon)); err != nil {
		return p, fmt.Errorf("%s: %w", ColumnLon, err)
	}
	if p.Speed, err = parseSpeed(cols.Get(record, ColumnSpeed)); err != nil {
		return p, fmt.Errorf("%s: %w", ColumnSpeed, err)
	}
	if p.Violations, err = parseViolations(cols.Get(record, ColumnViolations)); err != nil {
		return p, fmt.Errorf("%s: %w", ColumnViolations, err)
	}
	p.Plate = cols.Get(record, ColumnPlate)
	return p, nil
}

// parseEpoch accepts whole or fractional epoch seconds.
func parseEpoch(value string) (time.Time, error) {
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return time.Time{}, err
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC(), nil
}

func parseCoordinate(value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("coordinate must be finite, got %q", value)
	}
	return v, nil
}

// parseSpeed maps an empty cell to NaN so it is left out of averages.
func parseSpeed(value string) (float64, error) {
	if value == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) {
		return 0, fmt.Errorf("speed must be finite, got %q", value)
	}
	return v, nil
}

// parseViolations accepts counts and boolean flags. Empty cells count as 0.
func parseViolations(value string) (float64, error) {
	switch strings.ToLower(value) {
	case "":
		return 0, nil
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) {
		return 0, nil
	}
	if math.IsInf(v, 0) {
		return 0, fmt.Errorf("violation count must be finite, got %q", value)
	}
	return v, nil
}
