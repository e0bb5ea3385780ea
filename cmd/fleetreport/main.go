package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetreport/internal/config"
	"fleetreport/internal/ingest"
	"fleetreport/internal/metrics"
	"fleetreport/internal/processor"
	"fleetreport/internal/publisher"
	"fleetreport/internal/registry"
	"fleetreport/internal/report"
	"fleetreport/internal/web"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := os.MkdirAll(cfg.ScratchDir, 0o755); err != nil {
		log.Fatalf("scratch dir: %v", err)
	}

	collector := metrics.NewCollector()
	if cfg.MetricsAddr != "" {
		metricsSrv := collector.Serve(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	opts := web.Options{
		ScratchDir: cfg.ScratchDir,
		Filename:   cfg.ReportFilename,
		Metrics:    collector,
	}
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, &pubMetrics{c: collector})
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer pub.Close()
		opts.Notifier = pub
	}

	pipeline := &processor.Pipeline{
		Ingest: &ingest.Ingestor{
			TrailDir:    cfg.TrailDir,
			Concurrency: cfg.LoadConcurrency,
			Metrics:     collector,
		},
		ArchivePath: cfg.ArchivePath,
		Registry: registry.Source{
			Path:  cfg.TripInfoPath,
			DSN:   cfg.TripRegistryDSN,
			Table: cfg.TripRegistryTable,
		},
		Exporter:   &report.Exporter{RejectEmpty: cfg.ReportRejectEmpty},
		ReportName: cfg.ReportFilename,
	}
	webServer := web.NewServer(pipeline, opts)

	mux := http.NewServeMux()
	mux.HandleFunc("/generate_report", webServer.GenerateReport)
	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("listening on %s (archive=%s registry=%s)", cfg.ServerAddr, cfg.ArchivePath, pipeline.Registry)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	log.Println("shutdown complete")
}

// pubMetrics adapts the Collector to publisher.PublisherMetrics.
type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()  { p.c.Published.Inc() }
func (p *pubMetrics) NATSPublishErrInc() { p.c.PublishErrs.Inc() }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
