package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"fleetreport/internal/apperr"
	"fleetreport/internal/gps"
	"fleetreport/internal/metrics"
	"fleetreport/internal/processor"
	"fleetreport/internal/publisher"
	"fleetreport/internal/report"
)

// ReportPipeline generates a report file for a window inside a scratch
// directory.
type ReportPipeline interface {
	Run(ctx context.Context, window gps.Window, scratch string) (processor.Result, error)
}

// Notifier announces generated reports.
type Notifier interface {
	PublishReport(summary publisher.ReportSummary) error
}

type Options struct {
	// ScratchDir is the parent of the per-request scratch directories.
	ScratchDir string
	Filename   string
	Notifier   Notifier
	Metrics    *metrics.Collector
}

type Server struct {
	pipeline   ReportPipeline
	scratchDir string
	filename   string
	notifier   Notifier
	metrics    *metrics.Collector
}

// maxRequestBytes bounds the JSON window body.
const maxRequestBytes = 64 << 10

type reportRequest struct {
	StartTime *int64 `json:"start_time"`
	EndTime   *int64 `json:"end_time"`
}

func NewServer(pipeline ReportPipeline, opts Options) *Server {
	filename := opts.Filename
	if filename == "" {
		filename = report.DefaultFilename
	}
	return &Server{
		pipeline:   pipeline,
		scratchDir: opts.ScratchDir,
		filename:   filename,
		notifier:   opts.Notifier,
		metrics:    opts.Metrics,
	}
}

// GenerateReport handles POST /generate_report. The report is written to a
// scratch directory owned by this request and removed once the response has
// been sent.
func (s *Server) GenerateReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	requestID := uuid.New().String()
	w.Header().Set("X-Request-ID", requestID)

	start := time.Now()
	if s.metrics != nil {
		s.metrics.InFlight.Inc()
		defer s.metrics.InFlight.Dec()
	}

	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	var sent bool
	res, window, err := s.generate(r.Context(), requestID, body, func(res processor.Result) error {
		var err error
		sent, err = s.serveReport(w, res)
		return err
	})
	s.observe(err, res, time.Since(start))
	if err != nil {
		log.Printf("report %s failed (%s): %v", requestID, apperr.Kind(err), err)
		if !sent {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}

	log.Printf("report %s: window=%d..%d trails=%d rows=%d took=%s",
		requestID, window.Start.Unix(), window.End.Unix(), res.Trails, res.Rows, time.Since(start).Round(time.Millisecond))
	s.notify(requestID, window, res)
}

// generate runs the pipeline in a fresh scratch directory and hands the
// result to serve before the directory is removed.
func (s *Server) generate(ctx context.Context, requestID string, body io.Reader, serve func(processor.Result) error) (processor.Result, gps.Window, error) {
	window, err := decodeWindow(body)
	if err != nil {
		return processor.Result{}, gps.Window{}, err
	}

	scratch, err := os.MkdirTemp(s.scratchDir, "report-"+requestID+"-")
	if err != nil {
		return processor.Result{}, window, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			log.Printf("report %s: remove scratch dir: %v", requestID, err)
		}
	}()

	res, err := s.pipeline.Run(ctx, window, scratch)
	if err != nil {
		return res, window, err
	}
	return res, window, serve(res)
}

// serveReport streams the finished report as a plain 200 download. Range and
// conditional headers are ignored. sent reports whether the status line has
// been written, after which errors can no longer reach the client.
func (s *Server) serveReport(w http.ResponseWriter, res processor.Result) (sent bool, err error) {
	file, err := os.Open(res.Path)
	if err != nil {
		return false, fmt.Errorf("open report: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return false, fmt.Errorf("stat report: %w", err)
	}

	h := w.Header()
	h.Set("Content-Type", "text/csv; charset=utf-8")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.filename))
	h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	h.Set("X-Report-Rows", strconv.Itoa(res.Rows))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, file); err != nil {
		return true, fmt.Errorf("send report: %w", err)
	}
	return true, nil
}

func decodeWindow(body io.Reader) (gps.Window, error) {
	var req reportRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return gps.Window{}, &apperr.InputError{Reason: "request body is empty"}
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return gps.Window{}, &apperr.InputError{Reason: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)}
		}
		return gps.Window{}, &apperr.InputError{Reason: err.Error()}
	}
	if req.StartTime == nil {
		return gps.Window{}, &apperr.InputError{Field: "start_time", Reason: "is required"}
	}
	if req.EndTime == nil {
		return gps.Window{}, &apperr.InputError{Field: "end_time", Reason: "is required"}
	}
	if *req.EndTime < *req.StartTime {
		return gps.Window{}, &apperr.InputError{Field: "end_time", Reason: "must not be before start_time"}
	}
	return gps.NewWindow(*req.StartTime, *req.EndTime), nil
}

func (s *Server) observe(err error, res processor.Result, took time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.Reports.WithLabelValues(apperr.Kind(err)).Inc()
	if err == nil {
		s.metrics.ReportDuration.Observe(took.Seconds())
		s.metrics.ReportRows.Observe(float64(res.Rows))
	}
}

func (s *Server) notify(requestID string, window gps.Window, res processor.Result) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.PublishReport(publisher.ReportSummary{
		RequestID:   requestID,
		StartTime:   window.Start.Unix(),
		EndTime:     window.End.Unix(),
		Rows:        res.Rows,
		Trails:      res.Trails,
		GeneratedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("report %s: publish summary: %v", requestID, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
