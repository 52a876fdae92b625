package entity

import (
	"time"

	"github.com/google/uuid"
)

// MetricTier is the coarse execution-hierarchy scope of a metric.
type MetricTier string

const (
	TierOne          MetricTier = "tier1"
	TierTwo          MetricTier = "tier2"
	TierThree        MetricTier = "tier3"
	TierCrossCutting MetricTier = "cross-cutting"
)

// AllTiers lists every valid metric tier.
func AllTiers() []MetricTier {
	return []MetricTier{TierOne, TierTwo, TierThree, TierCrossCutting}
}

// IsValid reports whether the tier is one of the known tiers.
func (t MetricTier) IsValid() bool {
	switch t {
	case TierOne, TierTwo, TierThree, TierCrossCutting:
		return true
	}
	return false
}

// MetricType classifies what a metric measures.
type MetricType string

const (
	MetricTypePerformance  MetricType = "performance"
	MetricTypeResource     MetricType = "resource"
	MetricTypeHealth       MetricType = "health"
	MetricTypeBusiness     MetricType = "business"
	MetricTypeSafety       MetricType = "safety"
	MetricTypeQuality      MetricType = "quality"
	MetricTypeEfficiency   MetricType = "efficiency"
	MetricTypeIntelligence MetricType = "intelligence"
)

// AllMetricTypes lists every valid metric type.
func AllMetricTypes() []MetricType {
	return []MetricType{
		MetricTypePerformance,
		MetricTypeResource,
		MetricTypeHealth,
		MetricTypeBusiness,
		MetricTypeSafety,
		MetricTypeQuality,
		MetricTypeEfficiency,
		MetricTypeIntelligence,
	}
}

// IsValid reports whether the type is one of the known metric types.
func (t MetricType) IsValid() bool {
	for _, known := range AllMetricTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// AggregationType is an optional hint about how a metric aggregates over time.
type AggregationType string

const (
	AggregationGauge     AggregationType = "gauge"
	AggregationCounter   AggregationType = "counter"
	AggregationHistogram AggregationType = "histogram"
	AggregationSummary   AggregationType = "summary"
	AggregationRate      AggregationType = "rate"
)

// UnifiedMetric is the canonical metric record. The id is unique and immutable
// once assigned, and the timestamp is set at creation and never mutated.
// Only metrics with a numeric value participate in statistical computations.
type UnifiedMetric struct {
	ID        string
	Timestamp time.Time

	Tier      MetricTier
	Component string
	Type      MetricType

	Name  string
	Value interface{}
	Unit  string

	ExecutionID string
	UserID      string
	TeamID      string
	SessionID   string

	Metadata map[string]interface{}
	Tags     []string

	SampleRate  float64
	Aggregation AggregationType
}

// MetricInput is a metric as producers supply it: everything except the id
// and timestamp, which the collector assigns.
type MetricInput struct {
	Tier        MetricTier
	Component   string
	Type        MetricType
	Name        string
	Value       interface{}
	Unit        string
	ExecutionID string
	UserID      string
	TeamID      string
	SessionID   string
	Metadata    map[string]interface{}
	Tags        []string
	SampleRate  float64
	Aggregation AggregationType
}

// NewUnifiedMetric creates a metric with a fresh id and the current timestamp.
func NewUnifiedMetric(tier MetricTier, component string, metricType MetricType, name string, value interface{}) *UnifiedMetric {
	return &UnifiedMetric{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Tier:      tier,
		Component: component,
		Type:      metricType,
		Name:      name,
		Value:     value,
	}
}

// FromInput materializes a MetricInput into a full record with id and timestamp.
func FromInput(input MetricInput) *UnifiedMetric {
	return &UnifiedMetric{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		Tier:        input.Tier,
		Component:   input.Component,
		Type:        input.Type,
		Name:        input.Name,
		Value:       input.Value,
		Unit:        input.Unit,
		ExecutionID: input.ExecutionID,
		UserID:      input.UserID,
		TeamID:      input.TeamID,
		SessionID:   input.SessionID,
		Metadata:    input.Metadata,
		Tags:        input.Tags,
		SampleRate:  input.SampleRate,
		Aggregation: input.Aggregation,
	}
}

// NumericValue returns the metric value as a float64 when the runtime type is
// numeric. Strings, booleans and structured values are not numeric.
func (m *UnifiedMetric) NumericValue() (float64, bool) {
	switch v := m.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

// StringValue returns the metric value when it is a string.
func (m *UnifiedMetric) StringValue() (string, bool) {
	s, ok := m.Value.(string)
	return s, ok
}

// HasTag reports whether the metric carries the given tag.
func (m *UnifiedMetric) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddMetadata adds a metadata entry to the metric.
func (m *UnifiedMetric) AddMetadata(key string, value interface{}) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]interface{})
	}
	m.Metadata[key] = value
}

// GetMetadata retrieves a metadata value.
func (m *UnifiedMetric) GetMetadata(key string) (interface{}, bool) {
	if m.Metadata == nil {
		return nil, false
	}
	value, exists := m.Metadata[key]
	return value, exists
}
