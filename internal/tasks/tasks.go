package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	// TypeAnalyzeReport runs the swarm analysis for one stored report
	TypeAnalyzeReport = "report:analyze"
	// TypeOutbreakSweep re-checks every village agent for sustained risk
	TypeOutbreakSweep = "outbreak:sweep"
)

// TaskPayload is the common payload for all tasks
type TaskPayload struct {
	ReportID string `json:"report_id,omitempty"`
}

// NewAnalyzeReportTask creates a task to analyze a submitted report
func NewAnalyzeReportTask(reportID string) (*asynq.Task, error) {
	payload, err := json.Marshal(TaskPayload{
		ReportID: reportID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeAnalyzeReport, payload), nil
}

// NewOutbreakSweepTask creates a task to sweep all agents for outbreaks
func NewOutbreakSweepTask() (*asynq.Task, error) {
	payload, err := json.Marshal(TaskPayload{})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeOutbreakSweep, payload), nil
}

// ParseTaskPayload parses task payload from Asynq task
func ParseTaskPayload(task *asynq.Task) (TaskPayload, error) {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payload, nil
}
