package domain

import "github.com/google/uuid"

// ProgressUpdate is the broadcast-only payload pushed to live subscribers
// after each batch. It is never persisted.
type ProgressUpdate struct {
	JobID        uuid.UUID       `json:"jobId"`
	Status       ImportJobStatus `json:"status"`
	Percentage   float64         `json:"percentage"`
	Processed    int             `json:"processed"`
	Total        int             `json:"total"`
	Succeeded    int             `json:"succeeded"`
	Failed       int             `json:"failed"`
	ETASeconds   *int            `json:"eta,omitempty"`
	CurrentBatch int             `json:"currentBatch"`
	TotalBatches int             `json:"totalBatches"`
}
