package processor

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"fleetreport/internal/gps"
	"fleetreport/internal/ingest"
	"fleetreport/internal/registry"
	"fleetreport/internal/report"
)

// Result describes a report written by the pipeline.
type Result struct {
	Path   string
	Rows   int
	Trails int
}

// Pipeline produces one report from the trail archive and trip registry.
type Pipeline struct {
	Ingest      *ingest.Ingestor
	ArchivePath string
	Registry    registry.Source
	Exporter    *report.Exporter
	ReportName  string
}

// Run builds the report for window inside scratch. Everything it writes
// stays under scratch, which the caller owns and removes.
func (p *Pipeline) Run(ctx context.Context, window gps.Window, scratch string) (Result, error) {
	if p.Ingest == nil {
		return Result{}, fmt.Errorf("ingestor not configured")
	}

	trails, err := p.Ingest.Load(ctx, p.ArchivePath, filepath.Join(scratch, "archive"))
	if err != nil {
		return Result{}, err
	}

	trips, err := registry.Open(ctx, p.Registry)
	if err != nil {
		return Result{}, err
	}
	defer trips.Close()

	rows, err := BuildReport(ctx, window, trails, trips)
	if err != nil {
		return Result{}, err
	}
	if len(rows) == 0 {
		log.Printf("no vehicle has points between %s and %s", window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))
	}

	exporter := p.Exporter
	if exporter == nil {
		exporter = &report.Exporter{}
	}
	path := filepath.Join(scratch, p.reportName())
	if err := exporter.WriteFile(path, rows); err != nil {
		return Result{}, err
	}

	return Result{Path: path, Rows: len(rows), Trails: len(trails)}, nil
}

func (p *Pipeline) reportName() string {
	if p.ReportName == "" {
		return report.DefaultFilename
	}
	return filepath.Base(p.ReportName)
}
