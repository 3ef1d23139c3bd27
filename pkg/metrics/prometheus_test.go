package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordRun("succeeded", "schedule")
	r.RecordRun("succeeded", "schedule")
	r.RecordError("INCOMPLETE_DATA")
	r.RecordRows("training", 42)
	r.RecordArchived(8)
	r.RecordStage("merge", 0.2)
	r.RecordLastSuccess(time.Unix(1700000000, 0))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("succeeded", "schedule")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("INCOMPLETE_DATA")))
	assert.Equal(t, 42.0, testutil.ToFloat64(r.datasetRows.WithLabelValues("training")))
	assert.Equal(t, 8.0, testutil.ToFloat64(r.archivedTotal))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(r.lastSuccess))
	assert.Equal(t, 1, testutil.CollectAndCount(r.stageDuration))
}
