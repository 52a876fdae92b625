// Package stats provides the pure numeric functions behind summaries and
// pattern detection: percentiles, trend slopes, outlier detection and
// autocorrelation. All variance computations are population variance, and
// correlation functions return 0 rather than NaN on degenerate input.
package stats

import (
	"math"
	"sort"

	"github.com/swarmops/telemetry/domain/valueobject"
)

// BasicStats holds the summary statistics of one numeric series.
type BasicStats struct {
	Count  int
	Sum    float64
	Avg    float64
	Min    float64
	Max    float64
	StdDev float64
	P50    float64
	P90    float64
	P95    float64
	P99    float64
}

// CalculateBasicStats computes count, sum, avg, min, max, population standard
// deviation and interpolated percentiles for the series.
func CalculateBasicStats(values []float64) BasicStats {
	if len(values) == 0 {
		return BasicStats{}
	}

	result := BasicStats{
		Count: len(values),
		Min:   values[0],
		Max:   values[0],
	}
	for _, v := range values {
		result.Sum += v
		if v < result.Min {
			result.Min = v
		}
		if v > result.Max {
			result.Max = v
		}
	}
	result.Avg = result.Sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - result.Avg
		variance += diff * diff
	}
	variance /= float64(len(values))
	result.StdDev = math.Sqrt(variance)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	result.P50 = Percentile(sorted, 0.50)
	result.P90 = Percentile(sorted, 0.90)
	result.P95 = Percentile(sorted, 0.95)
	result.P99 = Percentile(sorted, 0.99)

	return result
}

// Percentile returns the p-quantile (p in [0, 1]) of an ascending-sorted
// series using linear interpolation between the two nearest ranks.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	index := p * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// LinearRegressionSlope returns the least-squares slope of the series over
// insertion order as the implicit time axis.
func LinearRegressionSlope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denominator := n*sumXX - sumX*sumX
	if denominator == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denominator
}

// DetectTrend classifies the series as increasing, decreasing or stable from
// its regression slope; |slope| below 0.1 is stable.
func DetectTrend(values []float64) valueobject.TrendDirection {
	slope := LinearRegressionSlope(values)
	if math.Abs(slope) < 0.1 {
		return valueobject.TrendStable
	}
	if slope > 0 {
		return valueobject.TrendIncreasing
	}
	return valueobject.TrendDecreasing
}

// CalculateChangeRate returns the percentage change from the first to the
// last value. 0 to 0 is 0; a nonzero change from 0 is infinite.
func CalculateChangeRate(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	first := values[0]
	last := values[len(values)-1]
	if first == 0 {
		if last == 0 {
			return 0
		}
		return math.Inf(int(math.Copysign(1, last)))
	}
	return (last - first) / math.Abs(first) * 100
}

// DetectAnomaliesZScore flags indices whose absolute z-score against the
// population mean exceeds the threshold. Zero spread yields no anomalies.
func DetectAnomaliesZScore(values []float64, threshold float64) []int {
	if len(values) == 0 {
		return nil
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(len(values)))
	if stdDev == 0 {
		return nil
	}

	var anomalies []int
	for i, v := range values {
		if math.Abs(v-mean)/stdDev > threshold {
			anomalies = append(anomalies, i)
		}
	}
	return anomalies
}

// DetectAnomaliesMAD flags outliers using the median absolute deviation,
// which is robust to heavy-tailed distributions. Zero MAD yields no
// anomalies.
func DetectAnomaliesMAD(values []float64, threshold float64) []int {
	if len(values) == 0 {
		return nil
	}

	med := median(values)

	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - med)
	}
	mad := median(deviations)
	if mad == 0 {
		return nil
	}

	var anomalies []int
	for i, v := range values {
		if math.Abs(v-med)/mad > threshold {
			anomalies = append(anomalies, i)
		}
	}
	return anomalies
}

// median returns the median without mutating the input.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// CalculateCorrelation returns the Pearson correlation coefficient of two
// equal-length series, or 0 when the denominator is degenerate.
func CalculateCorrelation(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}

	n := float64(len(a))
	var sumA, sumB, sumAB, sumAA, sumBB float64
	for i := range a {
		sumA += a[i]
		sumB += b[i]
		sumAB += a[i] * b[i]
		sumAA += a[i] * a[i]
		sumBB += b[i] * b[i]
	}

	numerator := n*sumAB - sumA*sumB
	denominator := math.Sqrt((n*sumAA - sumA*sumA) * (n*sumBB - sumB*sumB))
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// AutocorrelationAt returns the autocorrelation of the series at the given
// lag, or 0 when the lag is out of range or the variance is degenerate.
func AutocorrelationAt(values []float64, lag int) float64 {
	if lag <= 0 || lag >= len(values) {
		return 0
	}
	return CalculateCorrelation(values[:len(values)-lag], values[lag:])
}

// DetectSeasonality reports whether the series is seasonal at the given
// period: |autocorrelation| above 0.5.
func DetectSeasonality(values []float64, period int) bool {
	return math.Abs(AutocorrelationAt(values, period)) > 0.5
}

// CalculateMovingAverage computes the trailing-window average at every
// position; the window shrinks near the start of the series.
func CalculateMovingAverage(values []float64, windowSize int) []float64 {
	if len(values) == 0 || windowSize <= 0 {
		return nil
	}

	result := make([]float64, len(values))
	for i := range values {
		start := i - windowSize + 1
		if start < 0 {
			start = 0
		}
		sum := 0.0
		for j := start; j <= i; j++ {
			sum += values[j]
		}
		result[i] = sum / float64(i-start+1)
	}
	return result
}
