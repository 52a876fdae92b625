package valueobject

// PatternType classifies the shape of a metric time series.
type PatternType string

const (
	PatternTrend       PatternType = "trend"
	PatternSpike       PatternType = "spike"
	PatternDrop        PatternType = "drop"
	PatternPeriodic    PatternType = "periodic"
	PatternOscillation PatternType = "oscillation"
)

// DetectedPattern is one pattern classification for a metric name, with a
// confidence in [0, 1]. Direction is set for trend patterns and Period for
// periodic patterns.
type DetectedPattern struct {
	MetricName string
	Type       PatternType
	Confidence float64
	Direction  TrendDirection
	Period     int
}

// ChangePoint marks an index in a series where the mean shifts significantly
// between adjacent sliding windows.
type ChangePoint struct {
	Index     int
	Statistic float64
}
