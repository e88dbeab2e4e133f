package models

import "time"

// JobExecutionStatus is the lifecycle state of a JobExecution row.
type JobExecutionStatus string

const (
	JobExecutionStarted   JobExecutionStatus = "started"
	JobExecutionSuccess   JobExecutionStatus = "success"
	JobExecutionFailed    JobExecutionStatus = "failed"
	JobExecutionCancelled JobExecutionStatus = "cancelled"
)

// JobExecution is the audit record of one attempt to run one schedule.
// One row is inserted at coordinator start and updated once on completion;
// rows are never deleted except by retention policy (see schedule.Maintenance.PruneJobExecutions).
type JobExecution struct {
	ExecutionID     string             `json:"execution_id" badgerhold:"key"`
	ScheduleID      string             `json:"schedule_id" badgerhold:"index"`
	JobID           string             `json:"job_id"`
	Domain          string             `json:"domain"`
	DomainConfigID  string             `json:"domain_config_id"`
	Status          JobExecutionStatus `json:"status" badgerhold:"index"`
	StartedAt       time.Time          `json:"started_at"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	DurationSeconds float64            `json:"duration_seconds,omitempty"`
	ScanID          string             `json:"scan_id,omitempty"`
	Error           string             `json:"error,omitempty"`
	ErrorDetails    map[string]any     `json:"error_details,omitempty"`
	Metadata        map[string]any     `json:"metadata,omitempty"`
	LastHeartbeat   time.Time          `json:"last_heartbeat"`
}
