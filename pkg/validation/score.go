package validation

import "math"

// Inputs are the check totals a quality score is derived from.
type Inputs struct {
	TotalRecords    int64
	ValidRecords    int64
	Inconsistencies int
	Anomalies       int
	Countries       CountryBuckets
}

// ComputeMetrics derives the four sub-metrics. Each is clamped to [0,100];
// ratios over an empty denominator are zero.
func ComputeMetrics(in Inputs, cfg Config) Metrics {
	m := Metrics{
		Consistency: 100 - float64(in.Inconsistencies)/cfg.ConsistencyPenaltyDivisor,
		Accuracy:    100 - float64(in.Anomalies)/cfg.AccuracyPenaltyDivisor,
	}
	if in.TotalRecords > 0 {
		m.Completeness = float64(in.ValidRecords) / float64(in.TotalRecords) * 100
	}
	if in.Countries.Total > 0 {
		m.Coverage = float64(in.Countries.Tri) / float64(in.Countries.Total) * 100
	}

	m.Completeness = clamp(m.Completeness)
	m.Consistency = clamp(m.Consistency)
	m.Coverage = clamp(m.Coverage)
	m.Accuracy = clamp(m.Accuracy)
	return m
}

// Score is the weighted sum of the sub-metrics, clamped to [0,100] and
// rounded to two decimals.
func Score(m Metrics, w Weights) float64 {
	s := m.Completeness*w.Completeness +
		m.Consistency*w.Consistency +
		m.Coverage*w.Coverage +
		m.Accuracy*w.Accuracy
	return math.Round(clamp(s)*100) / 100
}

// StatusFor maps a quality score to its label.
func StatusFor(score float64) string {
	switch {
	case score >= 85:
		return StatusExcellent
	case score >= 70:
		return StatusGood
	case score >= 50:
		return StatusFair
	default:
		return StatusPoor
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
