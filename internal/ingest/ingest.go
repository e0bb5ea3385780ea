// Package ingest extracts a trail archive and parses its per-vehicle CSV
// trails.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"fleetreport/internal/apperr"
	"fleetreport/internal/gps"
)

const (
	DefaultTrailDir    = "EOL-dump"
	defaultConcurrency = 4
)

// LoadMetrics receives per-trail load counts. Implementations must be safe
// for concurrent use.
type LoadMetrics interface {
	TrailLoaded(points int)
}

type Ingestor struct {
	// TrailDir is the directory inside the archive that holds the trails.
	TrailDir    string
	Concurrency int
	Metrics     LoadMetrics
}

// Load extracts archivePath into scratch and parses every trail it holds.
func (i *Ingestor) Load(ctx context.Context, archivePath, scratch string) ([]gps.Trail, error) {
	if err := Extract(archivePath, scratch); err != nil {
		return nil, err
	}
	return i.LoadTrails(ctx, scratch)
}

// LoadTrails parses the CSV trails found under root/TrailDir, ordered by file
// name. Any unreadable trail fails the whole load.
func (i *Ingestor) LoadTrails(ctx context.Context, root string) ([]gps.Trail, error) {
	dir := filepath.Join(root, i.trailDir())
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperr.Load(i.trailDir(), err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	trails := make([]gps.Trail, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency())
	for idx, name := range names {
		idx, name := idx, name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			trail, err := loadTrailFile(filepath.Join(dir, name), name)
			if err != nil {
				return apperr.Load(name, err)
			}
			trails[idx] = trail
			if i.Metrics != nil {
				i.Metrics.TrailLoaded(len(trail.Points))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return trails, nil
}

func (i *Ingestor) trailDir() string {
	if i.TrailDir == "" {
		return DefaultTrailDir
	}
	return i.TrailDir
}

func (i *Ingestor) concurrency() int {
	if i.Concurrency <= 0 {
		return defaultConcurrency
	}
	return i.Concurrency
}

func loadTrailFile(path, source string) (gps.Trail, error) {
	file, err := os.Open(path)
	if err != nil {
		return gps.Trail{}, err
	}
	defer file.Close()
	return parseTrail(source, file)
}
