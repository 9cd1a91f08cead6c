package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskEliminationGenerate drafts intercompany elimination entries.
	TaskEliminationGenerate = "consol:eliminate"
)

// EliminationGeneratePayload scopes one elimination generate run. OwnerID is
// a numeric entity id or "all"; empty period bounds default to the previous
// calendar month.
type EliminationGeneratePayload struct {
	OwnerID  string `json:"owner_id"`
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
}

// NewEliminationGenerateTask constructs an Asynq task for the generate run.
func NewEliminationGenerateTask(ownerID, dateFrom, dateTo string) (*asynq.Task, error) {
	if ownerID == "" {
		ownerID = "all"
	}
	payload := EliminationGeneratePayload{OwnerID: ownerID, DateFrom: dateFrom, DateTo: dateTo}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEliminationGenerate, body, asynq.Queue(QueueDefault)), nil
}
