package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/swarmops/telemetry/domain/valueobject"
)

func TestCalculateBasicStats(t *testing.T) {
	t.Run("known series", func(t *testing.T) {
		result := CalculateBasicStats([]float64{10, 20, 30, 40, 50})

		assert.Equal(t, 5, result.Count)
		assert.Equal(t, 150.0, result.Sum)
		assert.Equal(t, 30.0, result.Avg)
		assert.Equal(t, 10.0, result.Min)
		assert.Equal(t, 50.0, result.Max)
		assert.Equal(t, 30.0, result.P50)
		assert.InDelta(t, 14.142, result.StdDev, 0.001)
	})

	t.Run("percentiles interpolate between ranks", func(t *testing.T) {
		result := CalculateBasicStats([]float64{10, 20, 30, 40, 50})

		// index = (n-1)*p = 4*0.9 = 3.6 -> 40 + 0.6*(50-40)
		assert.InDelta(t, 46.0, result.P90, 0.0001)
		assert.InDelta(t, 48.0, result.P95, 0.0001)
		assert.InDelta(t, 49.6, result.P99, 0.0001)
	})

	t.Run("empty series", func(t *testing.T) {
		result := CalculateBasicStats(nil)
		assert.Equal(t, 0, result.Count)
		assert.Equal(t, 0.0, result.Avg)
	})

	t.Run("single value", func(t *testing.T) {
		result := CalculateBasicStats([]float64{42})
		assert.Equal(t, 1, result.Count)
		assert.Equal(t, 42.0, result.P50)
		assert.Equal(t, 42.0, result.P99)
		assert.Equal(t, 0.0, result.StdDev)
	})
}

func TestDetectTrend(t *testing.T) {
	t.Run("increasing", func(t *testing.T) {
		assert.Equal(t, valueobject.TrendIncreasing, DetectTrend([]float64{1, 2, 3, 4, 5}))
	})

	t.Run("decreasing", func(t *testing.T) {
		assert.Equal(t, valueobject.TrendDecreasing, DetectTrend([]float64{5, 4, 3, 2, 1}))
	})

	t.Run("stable below slope threshold", func(t *testing.T) {
		assert.Equal(t, valueobject.TrendStable, DetectTrend([]float64{10, 10.01, 10, 10.02, 10}))
	})

	t.Run("too short", func(t *testing.T) {
		assert.Equal(t, valueobject.TrendStable, DetectTrend([]float64{3}))
	})
}

func TestCalculateChangeRate(t *testing.T) {
	t.Run("doubling is plus one hundred percent", func(t *testing.T) {
		assert.InDelta(t, 100.0, CalculateChangeRate([]float64{10, 15, 20}), 0.0001)
	})

	t.Run("halving is minus fifty percent", func(t *testing.T) {
		assert.InDelta(t, -50.0, CalculateChangeRate([]float64{10, 5}), 0.0001)
	})

	t.Run("zero to zero", func(t *testing.T) {
		assert.Equal(t, 0.0, CalculateChangeRate([]float64{0, 0}))
	})

	t.Run("zero to nonzero is infinite", func(t *testing.T) {
		assert.True(t, math.IsInf(CalculateChangeRate([]float64{0, 5}), 1))
	})
}

func TestDetectAnomaliesZScore(t *testing.T) {
	t.Run("flags the single outlier", func(t *testing.T) {
		anomalies := DetectAnomaliesZScore([]float64{1, 1, 1, 1, 100}, 2.5)
		assert.Empty(t, anomalies)

		// |100-20.8|/39.6 is below 2.5 for this series; a longer stable
		// baseline makes the outlier unambiguous.
		anomalies = DetectAnomaliesZScore([]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 100}, 2.5)
		assert.Equal(t, []int{9}, anomalies)
	})

	t.Run("zero spread yields none", func(t *testing.T) {
		assert.Nil(t, DetectAnomaliesZScore([]float64{5, 5, 5, 5}, 2.5))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, DetectAnomaliesZScore(nil, 2.5))
	})
}

func TestDetectAnomaliesMAD(t *testing.T) {
	t.Run("robust to the outlier itself", func(t *testing.T) {
		anomalies := DetectAnomaliesMAD([]float64{1, 2, 1, 2, 1, 2, 100}, 2.5)
		assert.Equal(t, []int{6}, anomalies)
	})

	t.Run("zero MAD yields none", func(t *testing.T) {
		assert.Nil(t, DetectAnomaliesMAD([]float64{7, 7, 7, 7, 7}, 2.5))
	})
}

func TestCalculateCorrelation(t *testing.T) {
	t.Run("perfect positive", func(t *testing.T) {
		r := CalculateCorrelation([]float64{1, 2, 3, 4}, []float64{2, 4, 6, 8})
		assert.InDelta(t, 1.0, r, 0.0001)
	})

	t.Run("perfect negative", func(t *testing.T) {
		r := CalculateCorrelation([]float64{1, 2, 3, 4}, []float64{8, 6, 4, 2})
		assert.InDelta(t, -1.0, r, 0.0001)
	})

	t.Run("degenerate denominator returns zero", func(t *testing.T) {
		assert.Equal(t, 0.0, CalculateCorrelation([]float64{3, 3, 3}, []float64{1, 2, 3}))
	})

	t.Run("length mismatch returns zero", func(t *testing.T) {
		assert.Equal(t, 0.0, CalculateCorrelation([]float64{1, 2}, []float64{1, 2, 3}))
	})
}

func TestDetectSeasonality(t *testing.T) {
	t.Run("sine wave is seasonal at its period", func(t *testing.T) {
		values := make([]float64, 96)
		for i := range values {
			values[i] = math.Sin(2 * math.Pi * float64(i) / 24)
		}
		assert.True(t, DetectSeasonality(values, 24))
	})

	t.Run("period out of range", func(t *testing.T) {
		assert.False(t, DetectSeasonality([]float64{1, 2, 3}, 10))
	})
}

func TestCalculateMovingAverage(t *testing.T) {
	t.Run("window shrinks near the start", func(t *testing.T) {
		result := CalculateMovingAverage([]float64{2, 4, 6, 8}, 3)

		assert.Equal(t, []float64{2, 3, 4, 6}, result)
	})

	t.Run("invalid window", func(t *testing.T) {
		assert.Nil(t, CalculateMovingAverage([]float64{1, 2}, 0))
	})
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}

	assert.Equal(t, 1.0, Percentile(sorted, 0))
	assert.Equal(t, 4.0, Percentile(sorted, 1))
	assert.InDelta(t, 2.5, Percentile(sorted, 0.5), 0.0001)
	assert.Equal(t, 0.0, Percentile(nil, 0.5))
}
