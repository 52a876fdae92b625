package entity

import (
	"encoding/json"
	"time"
)

// UpstreamEventKind tags the variant of an upstream platform event.
type UpstreamEventKind string

const (
	EventKindSwarmStarted   UpstreamEventKind = "swarm.started"
	EventKindSwarmCompleted UpstreamEventKind = "swarm.completed"
	EventKindRunStarted     UpstreamEventKind = "run.started"
	EventKindRunCompleted   UpstreamEventKind = "run.completed"
	EventKindStepCompleted  UpstreamEventKind = "step.completed"
	EventKindResource       UpstreamEventKind = "resource.sample"
	EventKindTelemetry      UpstreamEventKind = "telemetry.sample"
	EventKindHealth         UpstreamEventKind = "health.status"
	EventKindGeneric        UpstreamEventKind = "generic"
)

// UpstreamEvent is a tagged variant over the known upstream event shapes.
// Exactly one of the variant pointers is set for a well-formed event; the
// Generic variant is the explicit fallback for unrecognized events so that no
// event category is silently dropped.
type UpstreamEvent struct {
	ID        string
	Kind      UpstreamEventKind
	Source    string
	Timestamp time.Time
	Metadata  map[string]string

	Swarm     *SwarmLifecycle
	Run       *RunLifecycle
	Step      *StepCompletion
	Resource  *ResourceSample
	Telemetry *TelemetrySample
	Health    *HealthSample
	Generic   *GenericEvent
}

// SwarmLifecycle carries a swarm start/completion. Metrics is the raw nested
// performance payload as the platform sent it; the processor picks known
// fields out of it one by one.
type SwarmLifecycle struct {
	SwarmID string
	Phase   string // "started" or "completed"
	Metrics json.RawMessage
}

// RunLifecycle carries a run start/completion inside a swarm.
type RunLifecycle struct {
	RunID   string
	SwarmID string
	Phase   string
	Metrics json.RawMessage
}

// StepCompletion is a single finished execution step.
type StepCompletion struct {
	StepID     string
	RunID      string
	DurationMs float64
	Success    bool
}

// ResourceSample is a point-in-time resource usage reading.
type ResourceSample struct {
	Component string
	Resource  string // cpu, memory, disk, network
	Value     float64
	Unit      string
}

// TelemetrySample is a generic instrumented value from a component.
type TelemetrySample struct {
	Component string
	Name      string
	Value     float64
	Unit      string
}

// HealthSample is a component health report.
type HealthSample struct {
	Component string
	Status    string // healthy, degraded, unhealthy
	Detail    string
}

// GenericEvent is the fallback variant: the raw payload travels as opaque
// data into the resulting metric's metadata.
type GenericEvent struct {
	Category    string
	Subcategory string
	Payload     json.RawMessage
}

// ExecutionID returns the execution identifier the event correlates to, if any.
func (e *UpstreamEvent) ExecutionID() string {
	switch {
	case e.Swarm != nil:
		return e.Swarm.SwarmID
	case e.Run != nil:
		return e.Run.RunID
	case e.Step != nil:
		return e.Step.RunID
	}
	return ""
}

// Category returns a human-readable category for logging and fallback naming.
func (e *UpstreamEvent) Category() string {
	if e.Generic != nil && e.Generic.Category != "" {
		return e.Generic.Category
	}
	return string(e.Kind)
}
