package entity

import (
	"time"
)

// DefaultRetentionDays is applied to buckets created dynamically for a
// (tier, type) combination that has no configured policy.
const DefaultRetentionDays = 7

// DownsamplingStrategy describes how aged metrics would be reduced. The
// downsampling operation itself is a declared extension point that currently
// does nothing.
type DownsamplingStrategy struct {
	AfterDays        int
	Method           AggregationType
	TargetResolution time.Duration
}

// RetentionPolicy binds a (tier, metric type) pair to a retention window.
type RetentionPolicy struct {
	Tier          MetricTier
	Type          MetricType
	RetentionDays int
	Downsampling  *DownsamplingStrategy
}

// MaxAge returns the retention window as a duration.
func (p RetentionPolicy) MaxAge() time.Duration {
	days := p.RetentionDays
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// NewRetentionPolicy creates a retention policy for a (tier, type) pair.
func NewRetentionPolicy(tier MetricTier, metricType MetricType, retentionDays int) RetentionPolicy {
	return RetentionPolicy{
		Tier:          tier,
		Type:          metricType,
		RetentionDays: retentionDays,
	}
}

// DefaultRetentionPolicies returns the policies created eagerly at start-up.
// Performance and resource metrics are the highest-volume types and get a
// shorter window on the inner tiers.
func DefaultRetentionPolicies() []RetentionPolicy {
	policies := []RetentionPolicy{}
	for _, tier := range AllTiers() {
		for _, metricType := range AllMetricTypes() {
			days := DefaultRetentionDays
			switch metricType {
			case MetricTypePerformance, MetricTypeResource:
				if tier != TierCrossCutting {
					days = 3
				}
			case MetricTypeBusiness, MetricTypeSafety:
				days = 30
			}
			policies = append(policies, NewRetentionPolicy(tier, metricType, days))
		}
	}
	return policies
}
