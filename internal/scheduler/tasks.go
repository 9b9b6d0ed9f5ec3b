package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskChurnReconcile = "amc.churn.reconcile"

// ChurnReconcilePayload optionally pins the pass to a date. An empty Date means the
// studio's current date when the task runs.
type ChurnReconcilePayload struct {
	Date string `json:"date,omitempty"`
}

func NewChurnReconcileTask(payload ChurnReconcilePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskChurnReconcile, data), nil
}

func ParseChurnReconcilePayload(task *asynq.Task) (ChurnReconcilePayload, error) {
	var payload ChurnReconcilePayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ChurnReconcilePayload{}, err
	}
	return payload, nil
}
