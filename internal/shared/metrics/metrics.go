package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	uploadsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filesafe_uploads_started_total",
		Help: "Total upload initiations accepted",
	})

	uploadsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filesafe_uploads_failed_total",
		Help: "Total files transitioned to Failed",
	})

	scanCallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filesafe_scan_callbacks_total",
		Help: "Total scan callbacks by outcome",
	}, []string{"outcome"})

	scanDispatchSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "filesafe_scan_dispatch_duration_seconds",
		Help:    "Duration of scan dispatch calls in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filesafe_sweep_runs_total",
		Help: "Total sweep cycles executed",
	})

	sweepFailedFilesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filesafe_sweep_failed_files_total",
		Help: "Total stuck files the sweeper transitioned to Failed",
	})
)

// IncUploadStarted increments the accepted-uploads counter.
func IncUploadStarted() {
	uploadsStartedTotal.Inc()
}

// IncUploadFailed increments the failed-files counter.
func IncUploadFailed() {
	uploadsFailedTotal.Inc()
}

// IncScanCallback records a scan callback outcome (clean, infected, error, not_found).
func IncScanCallback(outcome string) {
	scanCallbacksTotal.WithLabelValues(outcome).Inc()
}

// ObserveScanDispatchSeconds records the duration of one dispatch call.
func ObserveScanDispatchSeconds(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	scanDispatchSeconds.Observe(seconds)
}

// IncSweepRun increments the sweep-cycle counter.
func IncSweepRun() {
	sweepRunsTotal.Inc()
}

// AddSweepFailedFiles adds to the stuck-files counter.
func AddSweepFailedFiles(n int) {
	if n <= 0 {
		return
	}
	sweepFailedFilesTotal.Add(float64(n))
}

// Handler exposes the Prometheus metrics endpoint for gin.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
