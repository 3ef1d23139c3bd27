package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	datasetRows   *prometheus.GaugeVec
	errorsTotal   *prometheus.CounterVec
	archivedTotal prometheus.Counter
	lastSuccess   prometheus.Gauge
}

// New registers the pipeline metrics on reg. A nil reg means the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "energypull_runs_total",
				Help: "Pipeline runs by final status and trigger",
			},
			[]string{"status", "trigger"},
		),
		stageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "energypull_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		datasetRows: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "energypull_dataset_rows",
				Help: "Rows in the last written dataset",
			},
			[]string{"dataset"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "energypull_errors_total",
				Help: "Pipeline failures by error code",
			},
			[]string{"code"},
		),
		archivedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "energypull_archived_files_total",
				Help: "Raw files moved to the archive",
			},
		),
		lastSuccess: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "energypull_last_success_timestamp_seconds",
				Help: "Unix time of the last successful run",
			},
		),
	}
}

// RecordRun counts a finished run.
func (r *Recorder) RecordRun(status, trigger string) {
	r.runsTotal.WithLabelValues(status, trigger).Inc()
}

// RecordStage records stage latency in seconds.
func (r *Recorder) RecordStage(stage string, seconds float64) {
	r.stageDuration.WithLabelValues(stage).Observe(seconds)
}

func (r *Recorder) RecordRows(dataset string, rows int) {
	r.datasetRows.WithLabelValues(dataset).Set(float64(rows))
}

// RecordError records a failure by its error code.
func (r *Recorder) RecordError(code string) {
	r.errorsTotal.WithLabelValues(code).Inc()
}

func (r *Recorder) RecordArchived(n int) {
	r.archivedTotal.Add(float64(n))
}

func (r *Recorder) RecordLastSuccess(t time.Time) {
	r.lastSuccess.Set(float64(t.Unix()))
}
