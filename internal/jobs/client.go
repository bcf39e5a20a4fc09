package jobs

import (
	"log"

	"github.com/hibiken/asynq"
)

var asynqClient *asynq.Client

// InitClient initializes the Asynq client when a redis address is configured.
// Without one, enqueues become no-ops and reindexing runs inline.
func InitClient(redisAddr string) {
	if redisAddr == "" {
		log.Println("Redis not configured, background reindex disabled")
		return
	}
	asynqClient = asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	log.Println("Asynq client initialized")
}

// CloseClient releases the Asynq client connection.
func CloseClient() {
	if asynqClient != nil {
		asynqClient.Close()
		asynqClient = nil
	}
}

// EnqueueReindexForm schedules a search text rebuild for the form. Returns
// false when no queue is configured so the caller can reindex inline.
func EnqueueReindexForm(formID uint64) bool {
	if asynqClient == nil {
		return false
	}

	task, err := NewReindexFormTask(formID)
	if err != nil {
		log.Printf("Failed to build reindex task for form %d: %v", formID, err)
		return false
	}

	if _, err := asynqClient.Enqueue(task); err != nil {
		log.Printf("Failed to enqueue reindex for form %d: %v", formID, err)
		return false
	}
	return true
}
