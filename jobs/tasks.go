package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskMetricsWarmup refreshes the cached success metrics from the backend.
	TaskMetricsWarmup = "metrics:warmup"
)

// Reasons attached to warmup payloads.
const (
	ReasonSchedule = "schedule"
	ReasonWrite    = "write"
	ReasonManual   = "manual"
)

// MetricsWarmupPayload describes why a warmup was requested.
type MetricsWarmupPayload struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewMetricsWarmupTask constructs an Asynq task for the metrics warmup.
func NewMetricsWarmupTask(reason string) (*asynq.Task, error) {
	if reason == "" {
		reason = ReasonManual
	}
	data, err := json.Marshal(MetricsWarmupPayload{Reason: reason, RequestedAt: time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMetricsWarmup, data), nil
}
