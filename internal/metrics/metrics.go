package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the report generator's collectors on a private registry.
type Registry struct {
	reg *prometheus.Registry

	Uploads        *prometheus.CounterVec
	UploadRows     prometheus.Histogram
	Reports        *prometheus.CounterVec
	ReportFailures *prometheus.CounterVec
	ReportSeconds  prometheus.Histogram
	Sessions       prometheus.Gauge
	FilesProcessed *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderreport_uploads_total",
		Help: "Uploaded exports by platform.",
	}, []string{"platform"})
	uploadRows := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orderreport_upload_rows",
		Help:    "Rows per uploaded export.",
		Buckets: prometheus.ExponentialBuckets(10, 4, 6),
	})
	reports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderreport_reports_total",
		Help: "Generated reports by platform and format.",
	}, []string{"platform", "format"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderreport_report_failures_total",
		Help: "Failed report requests by reason.",
	}, []string{"reason"})
	seconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orderreport_report_seconds",
		Help:    "Time to build and render a report.",
		Buckets: prometheus.DefBuckets,
	})
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orderreport_sessions",
		Help: "Stored upload sessions.",
	})
	files := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderreport_batch_files_total",
		Help: "Batch mode files by result.",
	}, []string{"result"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderreport_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	r.MustRegister(uploads, uploadRows, reports, failures, seconds, sessions, files, requests)
	return &Registry{
		reg:            r,
		Uploads:        uploads,
		UploadRows:     uploadRows,
		Reports:        reports,
		ReportFailures: failures,
		ReportSeconds:  seconds,
		Sessions:       sessions,
		FilesProcessed: files,
		HTTPRequests:   requests,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
