package stats

// AssetRow is the per-vehicle summary emitted in a report.
type AssetRow struct {
	Plate           string
	Distance        float64 // kilometers
	TripsCompleted  int
	AverageSpeed    float64 // NaN when no point carried a speed
	TransporterName string
	SpeedViolations float64
}
