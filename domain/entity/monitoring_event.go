package entity

import (
	"time"

	"github.com/google/uuid"
)

// MonitoringEventType classifies events emitted by the engine.
type MonitoringEventType string

const (
	MonitoringEventMetric  MonitoringEventType = "monitoring.metric"
	MonitoringEventAlert   MonitoringEventType = "monitoring.alert"
	MonitoringEventReport  MonitoringEventType = "monitoring.report"
	MonitoringEventAnomaly MonitoringEventType = "monitoring.anomaly"
)

// EventSource identifies the producer of a monitoring event.
type EventSource struct {
	Tier       MetricTier
	Component  string
	InstanceID string
}

// EventMetadata carries versioning and routing hints for a monitoring event.
type EventMetadata struct {
	Version  string
	Tags     []string
	Priority string
}

// MonitoringEvent is the envelope for everything the engine publishes onto
// the event channel: metric batches, alerts, reports and anomalies.
type MonitoringEvent struct {
	ID        string
	Type      MonitoringEventType
	Timestamp time.Time
	Source    EventSource
	Data      interface{}
	Metadata  EventMetadata
}

// NewMonitoringEvent creates an event envelope with a fresh id.
func NewMonitoringEvent(eventType MonitoringEventType, source EventSource, data interface{}) MonitoringEvent {
	return MonitoringEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
		Metadata: EventMetadata{
			Version: "1.0",
		},
	}
}

// MetricBatchPayload is the Data of a monitoring.metric event: one per-type
// group from a collector flush.
type MetricBatchPayload struct {
	MetricType MetricType
	Metrics    []*UnifiedMetric
}

// AnomalyPayload is the Data of a monitoring.anomaly event.
type AnomalyPayload struct {
	MetricName string
	Anomalies  []*UnifiedMetric
	Score      float64
	DetectedAt time.Time
}
