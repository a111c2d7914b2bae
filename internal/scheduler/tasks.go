package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const TaskBatchWaveDue = "batch.wave.due"

const TaskLeadCallbackDue = "leads.callback.due"

type BatchWavePayload struct {
	JobID string `json:"jobId"`
	Wave  int    `json:"wave"`
}

type LeadCallbackPayload struct {
	LeadID string `json:"leadId"`
}

// WaveTaskID gives every wave trigger a deterministic identity so a
// re-submitted enqueue collapses into the existing task instead of
// dispatching the wave twice.
func WaveTaskID(jobID string, wave int) string {
	return fmt.Sprintf("batch:%s:wave:%d", jobID, wave)
}

func NewBatchWaveTask(payload BatchWavePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBatchWaveDue, data), nil
}

func ParseBatchWavePayload(task *asynq.Task) (BatchWavePayload, error) {
	var payload BatchWavePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return BatchWavePayload{}, err
	}
	return payload, nil
}

func NewLeadCallbackTask(payload LeadCallbackPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadCallbackDue, data), nil
}

func ParseLeadCallbackPayload(task *asynq.Task) (LeadCallbackPayload, error) {
	var payload LeadCallbackPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadCallbackPayload{}, err
	}
	return payload, nil
}
