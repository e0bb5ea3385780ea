package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	Reports        *prometheus.CounterVec // outcome label: ok|input|load|empty|internal
	ReportDuration prometheus.Histogram
	ReportRows     prometheus.Histogram
	InFlight       prometheus.Gauge

	TrailsLoaded prometheus.Counter
	PointsLoaded prometheus.Counter

	Published     prometheus.Counter
	PublishErrs   prometheus.Counter
	NATSConnected prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetreport_reports_total",
			Help: "Report requests by outcome.",
		}, []string{"outcome"}),
		ReportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleetreport_report_duration_seconds",
			Help:    "Time to load, aggregate and export one report.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		ReportRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleetreport_report_rows",
			Help:    "Vehicle rows per generated report.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetreport_reports_in_flight",
			Help: "Report requests currently being processed.",
		}),
		TrailsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetreport_trails_loaded_total",
			Help: "Trail files parsed from the archive.",
		}),
		PointsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetreport_trail_points_loaded_total",
			Help: "GPS points parsed from trail files.",
		}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetreport_nats_published_total",
			Help: "Report summaries published to NATS.",
		}),
		PublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetreport_nats_publish_errors_total",
			Help: "Report summary publish failures.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetreport_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
	}

	reg.MustRegister(
		c.Reports, c.ReportDuration, c.ReportRows, c.InFlight,
		c.TrailsLoaded, c.PointsLoaded,
		c.Published, c.PublishErrs, c.NATSConnected,
	)

	return c
}

// TrailLoaded counts one parsed trail and its points.
func (c *Collector) TrailLoaded(points int) {
	c.TrailsLoaded.Inc()
	c.PointsLoaded.Add(float64(points))
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
