package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TypeReindexForm = "forms:reindex"

type ReindexFormPayload struct {
	FormID uint64 `json:"form_id"`
}

func NewReindexFormTask(formID uint64) (*asynq.Task, error) {
	payload, err := json.Marshal(ReindexFormPayload{FormID: formID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReindexForm, payload), nil
}
