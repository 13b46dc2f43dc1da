package tester

import (
	"sort"
)

// CalculateStats computes the distribution summary for one metric.
func CalculateStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return Stats{
		Mean: sum / float64(len(values)),
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		P90:  percentile(sorted, 90),
		P95:  percentile(sorted, 95),
		P99:  percentile(sorted, 99),
	}
}

// percentile computes the p-th percentile of a sorted ascending slice
// using linear interpolation between the two nearest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := float64(len(sorted)-1) * p / 100.0
	lower := int(rank)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Summarize computes per-metric distribution summaries over the
// successful results of a run.
func Summarize(results []*Result) *MetricStats {
	var ttft, tpot, ttfb, throughput, responseTime []float64
	for _, r := range results {
		if !r.Success() {
			continue
		}
		ttft = append(ttft, r.TTFT)
		tpot = append(tpot, r.TPOT)
		ttfb = append(ttfb, r.TTFB)
		throughput = append(throughput, r.Throughput)
		responseTime = append(responseTime, r.TotalResponseTime)
	}

	return &MetricStats{
		TTFT:         CalculateStats(ttft),
		TPOT:         CalculateStats(tpot),
		TTFB:         CalculateStats(ttfb),
		Throughput:   CalculateStats(throughput),
		ResponseTime: CalculateStats(responseTime),
	}
}
