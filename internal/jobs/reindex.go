package jobs

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
	"github.com/localnerve/jam-build-formsdb/internal/services"
	"gorm.io/gorm"
)

// NewReindexFormHandler returns the worker-side handler for forms:reindex
// tasks. Recomputes the denormalized search text of every entry of the form.
func NewReindexFormHandler(db *gorm.DB) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ReindexFormPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			log.Printf("Reindex payload decode error: %v", err)
			return err
		}

		updated, err := services.ReindexForm(db.WithContext(ctx), payload.FormID)
		if err != nil {
			log.Printf("Reindex failed for form %d: %v", payload.FormID, err)
			return err
		}

		log.Printf("Reindexed form %d: %d entries updated", payload.FormID, updated)
		return nil
	}
}
