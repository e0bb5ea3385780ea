package processor

import (
	"context"

	"fleetreport/internal/apperr"
	"fleetreport/internal/gps"
	"fleetreport/internal/stats"
)

// TripLookup resolves a vehicle to its transporter and completed trip count.
type TripLookup interface {
	LookupTrips(ctx context.Context, vehicle string) (string, int, error)
}

// BuildReport summarizes every trail over the window, one row per trail with
// in-window points, in trail order. Trails with no point in the window are
// skipped.
func BuildReport(ctx context.Context, window gps.Window, trails []gps.Trail, registry TripLookup) ([]stats.AssetRow, error) {
	var rows []stats.AssetRow
	for _, trail := range trails {
		points := trail.Filter(window)
		if len(points) == 0 {
			continue
		}
		row, err := summarize(ctx, points, registry)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// summarize assumes every point belongs to the vehicle of the first point.
func summarize(ctx context.Context, points []gps.TrailPoint, registry TripLookup) (stats.AssetRow, error) {
	plate := points[0].Plate
	transporter, trips, err := registry.LookupTrips(ctx, plate)
	if err != nil {
		return stats.AssetRow{}, apperr.Load("trip registry", err)
	}
	return stats.AssetRow{
		Plate:           plate,
		Distance:        gps.PathDistance(points),
		TripsCompleted:  trips,
		AverageSpeed:    gps.MeanSpeed(points),
		TransporterName: transporter,
		SpeedViolations: gps.SumViolations(points),
	}, nil
}
