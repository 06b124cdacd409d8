package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	m.Observe("no-show-scan", JobSucceeded, 2*time.Second, at)
	m.Observe("no-show-scan", JobFailed, time.Second, at.Add(time.Minute))
	m.Observe("no-show-scan", JobSkipped, 0, at.Add(2*time.Minute))

	mfs, err := reg.Gather()
	require.NoError(t, err)

	for _, result := range []string{JobSucceeded, JobFailed, JobSkipped} {
		run, err := findMetric(mfs, "carestaff_cron_runs_total", map[string]string{"job": "no-show-scan", "result": result})
		require.NoError(t, err, result)
		assert.Equal(t, 1.0, run.GetCounter().GetValue(), result)
	}

	hist, err := findMetric(mfs, "carestaff_cron_run_duration_seconds", map[string]string{"job": "no-show-scan"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), hist.GetHistogram().GetSampleCount())
	assert.Equal(t, 3.0, hist.GetHistogram().GetSampleSum())

	last, err := findMetric(mfs, "carestaff_cron_last_success_timestamp_seconds", map[string]string{"job": "no-show-scan"})
	require.NoError(t, err)
	assert.Equal(t, float64(at.Unix()), last.GetGauge().GetValue())
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	assert.NotPanics(t, func() { m.Observe("retention", JobSucceeded, time.Second, time.Now()) })
	assert.NotPanics(t, func() { NewCronJobMetrics(nil).Observe("retention", JobFailed, time.Second, time.Now()) })
}
