package metrics

import (
	"fmt"
	"slices"

	dto "github.com/prometheus/client_model/go"
)

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	i := slices.IndexFunc(mfs, func(mf *dto.MetricFamily) bool { return mf.GetName() == name })
	if i < 0 {
		return nil
	}
	return mfs[i]
}

func hasLabels(metric *dto.Metric, want map[string]string) bool {
	seen := make(map[string]string, len(metric.GetLabel()))
	for _, pair := range metric.GetLabel() {
		seen[pair.GetName()] = pair.GetValue()
	}
	for k, v := range want {
		if got, ok := seen[k]; !ok || got != v {
			return false
		}
	}
	return true
}

// findMetric returns the first series of name carrying every label in want.
func findMetric(mfs []*dto.MetricFamily, name string, want map[string]string) (*dto.Metric, error) {
	family := findMetricFamily(mfs, name)
	if family == nil {
		return nil, fmt.Errorf("no family %s", name)
	}
	series := family.GetMetric()
	if i := slices.IndexFunc(series, func(m *dto.Metric) bool { return hasLabels(m, want) }); i >= 0 {
		return series[i], nil
	}
	return nil, fmt.Errorf("%s%v not recorded", name, want)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric, err := findMetric(mfs, name, map[string]string{label: value})
	if err != nil {
		return 0, err
	}
	return metric.GetCounter().GetValue(), nil
}
