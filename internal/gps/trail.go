package gps

import (
	"math"
	"sort"
	"time"
)

// TrailPoint is one GPS fix of a vehicle trail.
type TrailPoint struct {
	Time       time.Time
	Lat        float64
	Lon        float64
	Speed      float64 // NaN when the source row has no speed
	Violations float64
	Plate      string
}

// Trail is the ordered GPS history loaded from one archive entry.
type Trail struct {
	Source string
	Points []TrailPoint
}

// Window is an inclusive time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a window from epoch seconds.
func NewWindow(startUnix, endUnix int64) Window {
	return Window{
		Start: time.Unix(startUnix, 0).UTC(),
		End:   time.Unix(endUnix, 0).UTC(),
	}
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Filter returns the points of the trail that fall inside the window, in
// trail order.
func (t Trail) Filter(w Window) []TrailPoint {
	var out []TrailPoint
	for _, p := range t.Points {
		if w.Contains(p.Time) {
			out = append(out, p)
		}
	}
	return out
}

// SortByTime orders points by timestamp, keeping source order for equal
// timestamps.
func SortByTime(points []TrailPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})
}

// PathDistance sums Distance over consecutive point pairs. Fewer than two
// points yield 0.
func PathDistance(points []TrailPoint) float64 {
	total := 0.0
	for i := 0; i+1 < len(points); i++ {
		total += Distance(points[i].Lat, points[i].Lon, points[i+1].Lat, points[i+1].Lon)
	}
	return total
}

// MeanSpeed averages the speeds that are present. It returns NaN when no
// point carries a speed.
func MeanSpeed(points []TrailPoint) float64 {
	sum := 0.0
	n := 0
	for _, p := range points {
		if math.IsNaN(p.Speed) {
			continue
		}
		sum += p.Speed
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// SumViolations adds up the speed-violation field of every point.
func SumViolations(points []TrailPoint) float64 {
	total := 0.0
	for _, p := range points {
		total += p.Violations
	}
	return total
}
