package processor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"fleetreport/internal/apperr"
	"fleetreport/internal/gps"
	"fleetreport/internal/storage"
)

type stubRegistry struct {
	trips map[string][]string
	calls int
	err   error
}

func (s *stubRegistry) LookupTrips(ctx context.Context, vehicle string) (string, int, error) {
	s.calls++
	if s.err != nil {
		return "", 0, s.err
	}
	names := s.trips[vehicle]
	if len(names) == 0 {
		return storage.UnknownTransporter, 0, nil
	}
	return names[0], len(names), nil
}

func point(ts int64, lat, lon, speed, violations float64, plate string) gps.TrailPoint {
	return gps.TrailPoint{
		Time:       time.Unix(ts, 0).UTC(),
		Lat:        lat,
		Lon:        lon,
		Speed:      speed,
		Violations: violations,
		Plate:      plate,
	}
}

func scenarioTrail() gps.Trail {
	return gps.Trail{Source: "MH12AB1234.csv", Points: []gps.TrailPoint{
		point(100, 19.0, 73.0, 40, 0, "MH12AB1234"),
		point(200, 19.01, 73.01, 50, 1, "MH12AB1234"),
		point(300, 19.02, 73.02, 60, 0, "MH12AB1234"),
	}}
}

func TestBuildReportScenario(t *testing.T) {
	reg := &stubRegistry{trips: map[string][]string{"MH12AB1234": {"Acme", "Acme"}}}

	rows, err := BuildReport(context.Background(), gps.NewWindow(100, 300), []gps.Trail{scenarioTrail()}, reg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]

	wantDistance := gps.Distance(19.0, 73.0, 19.01, 73.01) + gps.Distance(19.01, 73.01, 19.02, 73.02)
	if math.Abs(row.Distance-wantDistance) > 1e-9 {
		t.Fatalf("expected distance %f, got %f", wantDistance, row.Distance)
	}
	if math.Abs(row.Distance-3.06) > 0.1 {
		t.Fatalf("expected ~3.06 km, got %f", row.Distance)
	}
	if row.Plate != "MH12AB1234" || row.TransporterName != "Acme" || row.TripsCompleted != 2 {
		t.Fatalf("unexpected row identity: %+v", row)
	}
	if row.AverageSpeed != 50 {
		t.Fatalf("expected average speed 50, got %f", row.AverageSpeed)
	}
	if row.SpeedViolations != 1 {
		t.Fatalf("expected 1 violation, got %f", row.SpeedViolations)
	}
}

func TestBuildReportSkipsTrailsOutsideWindow(t *testing.T) {
	reg := &stubRegistry{}
	outside := gps.Trail{Source: "x.csv", Points: []gps.TrailPoint{
		point(10, 1, 1, 10, 0, "X"),
		point(20, 1.1, 1.1, 10, 0, "X"),
	}}

	rows, err := BuildReport(context.Background(), gps.NewWindow(100, 300), []gps.Trail{outside, {Source: "empty.csv"}}, reg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
	if reg.calls != 0 {
		t.Fatalf("expected no registry lookups for skipped trails, got %d", reg.calls)
	}
}

func TestBuildReportBoundariesAndSinglePoint(t *testing.T) {
	reg := &stubRegistry{}

	rows, err := BuildReport(context.Background(), gps.NewWindow(300, 400), []gps.Trail{scenarioTrail()}, reg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected boundary point to produce a row, got %d", len(rows))
	}
	row := rows[0]
	if row.Distance != 0 {
		t.Fatalf("expected distance 0 for single point, got %f", row.Distance)
	}
	if row.AverageSpeed != 60 || row.SpeedViolations != 0 {
		t.Fatalf("unexpected aggregates: %+v", row)
	}
	if row.TransporterName != storage.UnknownTransporter || row.TripsCompleted != 0 {
		t.Fatalf("expected unmatched registry defaults, got %+v", row)
	}
}

func TestBuildReportKeepsTrailOrder(t *testing.T) {
	reg := &stubRegistry{}
	trails := []gps.Trail{
		{Source: "b.csv", Points: []gps.TrailPoint{point(100, 1, 1, 1, 0, "B")}},
		{Source: "a.csv", Points: []gps.TrailPoint{point(100, 2, 2, 1, 0, "A")}},
	}

	rows, err := BuildReport(context.Background(), gps.NewWindow(0, 1000), trails, reg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(rows) != 2 || rows[0].Plate != "B" || rows[1].Plate != "A" {
		t.Fatalf("expected rows in trail order, got %+v", rows)
	}
}

func TestBuildReportMissingSpeeds(t *testing.T) {
	trail := gps.Trail{Source: "a.csv", Points: []gps.TrailPoint{
		point(100, 1, 1, math.NaN(), 1, "A"),
		point(200, 1, 1, math.NaN(), 2, "A"),
	}}

	rows, err := BuildReport(context.Background(), gps.NewWindow(0, 1000), []gps.Trail{trail}, &stubRegistry{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !math.IsNaN(rows[0].AverageSpeed) {
		t.Fatalf("expected NaN average speed, got %f", rows[0].AverageSpeed)
	}
	if rows[0].SpeedViolations != 3 {
		t.Fatalf("expected violations to be summed, got %f", rows[0].SpeedViolations)
	}
}

func TestBuildReportRegistryFailure(t *testing.T) {
	reg := &stubRegistry{err: errors.New("database is closed")}

	_, err := BuildReport(context.Background(), gps.NewWindow(100, 300), []gps.Trail{scenarioTrail()}, reg)
	if !apperr.IsLoadError(err) {
		t.Fatalf("expected load error, got %v", err)
	}
}
