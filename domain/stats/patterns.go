package stats

import (
	"math"

	"github.com/swarmops/telemetry/domain/valueobject"
)

// PatternDetector classifies a metric series into trend, spike/drop,
// periodic and oscillation patterns and flags anomalous points. Each
// detector needs a minimum number of numeric points; below that it yields no
// pattern rather than an error.
type PatternDetector struct {
	// ZScoreThreshold and MADThreshold gate anomaly flagging.
	ZScoreThreshold float64
	MADThreshold    float64

	// ChangePointThreshold is the minimum pooled-stddev t-statistic for a
	// change point.
	ChangePointThreshold float64

	// SpikeThreshold is the z-score bound for spike/drop classification.
	SpikeThreshold float64

	// TrendCorrelation is the minimum |r| between index and value for a
	// trend pattern.
	TrendCorrelation float64

	// OscillationRate is the minimum direction-reversal rate.
	OscillationRate float64

	// CandidatePeriods are the lags tested for seasonality, in sample
	// counts. The defaults assume hour-scale sampling.
	CandidatePeriods []int
}

const (
	minPointsForAnomalies    = 5
	minPointsForChangePoints = 10
)

// NewPatternDetector returns a detector with the standard thresholds.
func NewPatternDetector() *PatternDetector {
	return &PatternDetector{
		ZScoreThreshold:      2.5,
		MADThreshold:         2.5,
		ChangePointThreshold: 2.5,
		SpikeThreshold:       3,
		TrendCorrelation:     0.7,
		OscillationRate:      0.4,
		CandidatePeriods:     []int{24, 48, 168},
	}
}

// DetectAnomalies returns the union of z-score and MAD flagged indices plus
// detected change points, sorted ascending. Needs at least 5 points.
func (d *PatternDetector) DetectAnomalies(values []float64) []int {
	if len(values) < minPointsForAnomalies {
		return nil
	}

	flagged := make(map[int]struct{})
	for _, i := range DetectAnomaliesZScore(values, d.ZScoreThreshold) {
		flagged[i] = struct{}{}
	}
	for _, i := range DetectAnomaliesMAD(values, d.MADThreshold) {
		flagged[i] = struct{}{}
	}
	for _, cp := range d.DetectChangePoints(values) {
		flagged[cp.Index] = struct{}{}
	}

	if len(flagged) == 0 {
		return nil
	}
	result := make([]int, 0, len(flagged))
	for i := range values {
		if _, ok := flagged[i]; ok {
			result = append(result, i)
		}
	}
	return result
}

// DetectChangePoints slides adjacent before/after windows over the series
// and flags positions where the pooled-standard-deviation t-statistic of the
// mean shift exceeds the threshold. Needs at least 10 points.
func (d *PatternDetector) DetectChangePoints(values []float64) []valueobject.ChangePoint {
	if len(values) < minPointsForChangePoints {
		return nil
	}

	window := len(values) / 4
	if window > 5 {
		window = 5
	}

	var points []valueobject.ChangePoint
	for i := window; i <= len(values)-window; i++ {
		before := values[i-window : i]
		after := values[i : i+window]

		statistic := meanShiftStatistic(before, after)
		if statistic > d.ChangePointThreshold {
			points = append(points, valueobject.ChangePoint{
				Index:     i,
				Statistic: statistic,
			})
		}
	}
	return points
}

// meanShiftStatistic is a t-statistic of the mean difference between two
// windows using their pooled standard deviation.
func meanShiftStatistic(before, after []float64) float64 {
	meanBefore := mean(before)
	meanAfter := mean(after)

	varBefore := populationVariance(before, meanBefore)
	varAfter := populationVariance(after, meanAfter)

	n := float64(len(before))
	pooled := math.Sqrt((varBefore + varAfter) / 2)
	if pooled == 0 {
		return 0
	}
	return math.Abs(meanAfter-meanBefore) / (pooled * math.Sqrt(2/n))
}

// DetectPatterns runs every pattern detector over the series. The result may
// contain zero or more patterns; each carries a confidence in [0, 1].
func (d *PatternDetector) DetectPatterns(name string, values []float64) []valueobject.DetectedPattern {
	if len(values) < minPointsForAnomalies {
		return nil
	}

	var patterns []valueobject.DetectedPattern
	if p, ok := d.detectTrendPattern(name, values); ok {
		patterns = append(patterns, p)
	}
	if p, ok := d.detectSpikeDropPattern(name, values); ok {
		patterns = append(patterns, p)
	}
	if p, ok := d.detectPeriodicPattern(name, values); ok {
		patterns = append(patterns, p)
	}
	if p, ok := d.detectOscillationPattern(name, values); ok {
		patterns = append(patterns, p)
	}
	return patterns
}

// detectTrendPattern correlates index-as-time with value.
func (d *PatternDetector) detectTrendPattern(name string, values []float64) (valueobject.DetectedPattern, bool) {
	index := make([]float64, len(values))
	for i := range index {
		index[i] = float64(i)
	}

	r := CalculateCorrelation(index, values)
	if math.Abs(r) <= d.TrendCorrelation {
		return valueobject.DetectedPattern{}, false
	}

	direction := valueobject.TrendIncreasing
	if r < 0 {
		direction = valueobject.TrendDecreasing
	}
	return valueobject.DetectedPattern{
		MetricName: name,
		Type:       valueobject.PatternTrend,
		Confidence: math.Abs(r),
		Direction:  direction,
	}, true
}

// detectSpikeDropPattern looks for the largest z-score deviation and
// classifies its direction against the series mean.
func (d *PatternDetector) detectSpikeDropPattern(name string, values []float64) (valueobject.DetectedPattern, bool) {
	flagged := DetectAnomaliesZScore(values, d.SpikeThreshold)
	if len(flagged) == 0 {
		return valueobject.DetectedPattern{}, false
	}

	m := mean(values)
	maxDeviation := 0.0
	spike := false
	for _, i := range flagged {
		deviation := math.Abs(values[i] - m)
		if deviation > maxDeviation {
			maxDeviation = deviation
			spike = values[i] > m
		}
	}

	patternType := valueobject.PatternDrop
	if spike {
		patternType = valueobject.PatternSpike
	}

	confidence := 1.0
	if m != 0 {
		confidence = math.Min(1, maxDeviation/(2*math.Abs(m)))
	}
	return valueobject.DetectedPattern{
		MetricName: name,
		Type:       patternType,
		Confidence: confidence,
	}, true
}

// detectPeriodicPattern tests the fixed candidate periods; the first
// seasonal match wins with fixed confidence 0.8.
func (d *PatternDetector) detectPeriodicPattern(name string, values []float64) (valueobject.DetectedPattern, bool) {
	for _, period := range d.CandidatePeriods {
		if period >= len(values) {
			continue
		}
		if DetectSeasonality(values, period) {
			return valueobject.DetectedPattern{
				MetricName: name,
				Type:       valueobject.PatternPeriodic,
				Confidence: 0.8,
				Period:     period,
			}, true
		}
	}
	return valueobject.DetectedPattern{}, false
}

// detectOscillationPattern counts direction reversals across consecutive
// deltas.
func (d *PatternDetector) detectOscillationPattern(name string, values []float64) (valueobject.DetectedPattern, bool) {
	if len(values) < 3 {
		return valueobject.DetectedPattern{}, false
	}

	reversals := 0
	prevDelta := 0.0
	for i := 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta*prevDelta < 0 {
			reversals++
		}
		if delta != 0 {
			prevDelta = delta
		}
	}

	rate := float64(reversals) / float64(len(values)-1)
	if rate <= d.OscillationRate {
		return valueobject.DetectedPattern{}, false
	}
	return valueobject.DetectedPattern{
		MetricName: name,
		Type:       valueobject.PatternOscillation,
		Confidence: math.Min(1, rate*2),
	}, true
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func populationVariance(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	return variance / float64(len(values))
}
