package ingest

import (
	"archive/zip"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"fleetreport/internal/apperr"
	"fleetreport/internal/table"
)

const trailHeader = "tis,lat,lon,spd,osf,lic_plate_no,harsh_acc"

func writeArchive(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dump.zip")
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	zw := zip.NewWriter(out)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return path
}

type countingMetrics struct {
	mu     sync.Mutex
	trails int
	points int
}

func (m *countingMetrics) TrailLoaded(points int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trails++
	m.points += points
}

func TestLoadParsesTrailsInNameOrder(t *testing.T) {
	archive := writeArchive(t, map[string]string{
		"EOL-dump/b.csv": strings.Join([]string{
			trailHeader,
			"300,19.02,73.02,60,0,MH12AB1234,0",
			"100,19.0,73.0,40,0,MH12AB1234,0",
			"200,19.01,73.01,50,1,MH12AB1234,0",
		}, "\n"),
		"EOL-dump/a.csv":     trailHeader + "\n150,12.9,77.6,,True,KA01XY0001,0\n",
		"EOL-dump/notes.txt": "ignored",
	})

	metrics := &countingMetrics{}
	ing := &Ingestor{Concurrency: 2, Metrics: metrics}
	trails, err := ing.Load(context.Background(), archive, t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(trails) != 2 {
		t.Fatalf("expected 2 trails, got %d", len(trails))
	}
	if trails[0].Source != "a.csv" || trails[1].Source != "b.csv" {
		t.Fatalf("expected trails ordered by name, got %s, %s", trails[0].Source, trails[1].Source)
	}

	a := trails[0].Points[0]
	if !math.IsNaN(a.Speed) {
		t.Fatalf("expected missing speed to be NaN, got %f", a.Speed)
	}
	if a.Violations != 1 {
		t.Fatalf("expected boolean violation to count 1, got %f", a.Violations)
	}

	b := trails[1].Points
	for i, want := range []int64{100, 200, 300} {
		if got := b[i].Time.Unix(); got != want {
			t.Fatalf("point %d: expected time %d, got %d", i, want, got)
		}
	}
	if b[0].Plate != "MH12AB1234" || b[0].Lat != 19.0 || b[0].Speed != 40 {
		t.Fatalf("unexpected first point: %+v", b[0])
	}

	if metrics.trails != 2 || metrics.points != 4 {
		t.Fatalf("expected 2 trails / 4 points in metrics, got %d / %d", metrics.trails, metrics.points)
	}
}

func TestLoadMissingArchive(t *testing.T) {
	ing := &Ingestor{}
	_, err := ing.Load(context.Background(), filepath.Join(t.TempDir(), "missing.zip"), t.TempDir())
	if !apperr.IsLoadError(err) {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestLoadCorruptArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.zip")
	if err := os.WriteFile(path, []byte("not a zip"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ing := &Ingestor{}
	if _, err := ing.Load(context.Background(), path, t.TempDir()); !apperr.IsLoadError(err) {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestLoadMissingTrailDir(t *testing.T) {
	archive := writeArchive(t, map[string]string{"other/a.csv": trailHeader + "\n"})
	ing := &Ingestor{}
	if _, err := ing.Load(context.Background(), archive, t.TempDir()); !apperr.IsLoadError(err) {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestLoadCustomTrailDir(t *testing.T) {
	archive := writeArchive(t, map[string]string{"dump/a.csv": trailHeader + "\n100,1,1,1,0,X,0\n"})
	ing := &Ingestor{TrailDir: "dump"}
	trails, err := ing.Load(context.Background(), archive, t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(trails) != 1 || len(trails[0].Points) != 1 {
		t.Fatalf("unexpected trails: %+v", trails)
	}
}

func TestLoadRejectsMissingColumns(t *testing.T) {
	archive := writeArchive(t, map[string]string{
		"EOL-dump/a.csv": "tis,lat,lon\n100,1,1\n",
	})
	ing := &Ingestor{}
	_, err := ing.Load(context.Background(), archive, t.TempDir())
	if !apperr.IsLoadError(err) {
		t.Fatalf("expected load error, got %v", err)
	}
	var missing *table.MissingColumnsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected missing columns error, got %v", err)
	}
	if len(missing.Missing) != 3 {
		t.Fatalf("expected spd, osf, lic_plate_no missing, got %v", missing.Missing)
	}
}

func TestLoadRejectsMalformedRows(t *testing.T) {
	tests := []struct {
		name string
		row  string
	}{
		{name: "bad timestamp", row: "abc,1,1,1,0,X"},
		{name: "bad latitude", row: "100,north,1,1,0,X"},
		{name: "missing longitude", row: "100,1,,1,0,X"},
		{name: "infinite latitude", row: "100,Inf,1,1,0,X"},
		{name: "bad speed", row: "100,1,1,fast,0,X"},
		{name: "bad violation", row: "100,1,1,1,maybe,X"},
		{name: "infinite speed", row: "100,1,1,Inf,0,X"},
		{name: "negative infinite speed", row: "100,1,1,-inf,0,X"},
		{name: "infinite violations", row: "100,1,1,1,+Inf,X"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive := writeArchive(t, map[string]string{
				"EOL-dump/a.csv": "tis,lat,lon,spd,osf,lic_plate_no\n" + tt.row + "\n",
			})
			ing := &Ingestor{}
			_, err := ing.Load(context.Background(), archive, t.TempDir())
			if !apperr.IsLoadError(err) {
				t.Fatalf("expected load error, got %v", err)
			}
			if !strings.Contains(err.Error(), "line 2") {
				t.Fatalf("expected line number in error, got %v", err)
			}
		})
	}
}

func TestParseEpochFractional(t *testing.T) {
	ts, err := parseEpoch("100.5")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ts.Unix() != 100 || ts.Nanosecond() != 500000000 {
		t.Fatalf("unexpected time: %s", ts)
	}
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	archive := writeArchive(t, map[string]string{"../evil.csv": "x"})
	dest := filepath.Join(t.TempDir(), "scratch")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	err := Extract(archive, dest)
	if !apperr.IsLoadError(err) {
		t.Fatalf("expected load error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(filepath.Dir(dest), "evil.csv")); !os.IsNotExist(statErr) {
		t.Fatalf("expected escaping entry not to be written")
	}
}
