package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeMetrics(t *testing.T) {
	cfg := DefaultConfig()

	m := ComputeMetrics(Inputs{
		TotalRecords:    1000,
		ValidRecords:    900,
		Inconsistencies: 50,
		Anomalies:       2000,
		Countries:       CountryBuckets{Total: 200, Tri: 50},
	}, cfg)

	assert.InDelta(t, 90.0, m.Completeness, 1e-9)
	assert.InDelta(t, 99.5, m.Consistency, 1e-9)
	assert.InDelta(t, 25.0, m.Coverage, 1e-9)
	assert.InDelta(t, 98.0, m.Accuracy, 1e-9)
}

func TestComputeMetrics_EmptyStore(t *testing.T) {
	m := ComputeMetrics(Inputs{}, DefaultConfig())

	assert.Equal(t, 0.0, m.Completeness)
	assert.Equal(t, 0.0, m.Coverage)
	assert.Equal(t, 100.0, m.Consistency)
	assert.Equal(t, 100.0, m.Accuracy)
}

func TestComputeMetrics_Clamped(t *testing.T) {
	m := ComputeMetrics(Inputs{
		TotalRecords:    10,
		ValidRecords:    10,
		Inconsistencies: 50_000,
		Anomalies:       500_000,
		Countries:       CountryBuckets{Total: 1, Tri: 1},
	}, DefaultConfig())

	assert.Equal(t, 100.0, m.Completeness)
	assert.Equal(t, 0.0, m.Consistency)
	assert.Equal(t, 100.0, m.Coverage)
	assert.Equal(t, 0.0, m.Accuracy)
}

func TestScore(t *testing.T) {
	w := DefaultConfig().Weights

	tests := []struct {
		name string
		m    Metrics
		want float64
	}{
		{"perfect", Metrics{100, 100, 100, 100}, 100},
		{"zero", Metrics{}, 0},
		{"weighted", Metrics{Completeness: 90, Consistency: 99.6, Coverage: 25, Accuracy: 98}, 77.75},
		{"completeness only", Metrics{Completeness: 100}, 30},
		{"accuracy only", Metrics{Accuracy: 100}, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(tt.m, w), 1e-9)
		})
	}
}

func TestScore_ClampsOverweighted(t *testing.T) {
	w := Weights{Completeness: 1, Consistency: 1, Coverage: 1, Accuracy: 1}
	assert.Equal(t, 100.0, Score(Metrics{100, 100, 100, 100}, w))
}

func TestScore_Deterministic(t *testing.T) {
	m := Metrics{Completeness: 87.123456, Consistency: 99.98, Coverage: 41.7, Accuracy: 99.9}
	w := DefaultConfig().Weights

	first := Score(m, w)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Score(m, w))
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, StatusExcellent},
		{85, StatusExcellent},
		{84.99, StatusGood},
		{70, StatusGood},
		{69.99, StatusFair},
		{50, StatusFair},
		{49.99, StatusPoor},
		{0, StatusPoor},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.score), "score %v", tt.score)
	}
}
