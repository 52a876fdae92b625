package valueobject

// TrendDirection classifies a series' linear-regression slope.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// MetricSummary is the per-name statistical summary served to operators and
// agents. AnomalyCount and AnomalyScore are filled in by the pattern
// detector after the base statistics are computed.
type MetricSummary struct {
	Name  string
	Count int

	// GroupKey identifies the group when the summary was computed per
	// group key; empty for a whole-window summary.
	GroupKey string

	Sum    float64
	Avg    float64
	Min    float64
	Max    float64
	StdDev float64

	P50 float64
	P90 float64
	P95 float64
	P99 float64

	Trend      TrendDirection
	ChangeRate float64

	AnomalyCount int
	AnomalyScore float64
}
