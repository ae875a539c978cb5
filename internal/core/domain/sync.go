package domain

import "time"

// SyncResult reports one document ingestion. Ingestion is a side effect of a
// document save, so a failed sync is reported here and logged, never raised.
type SyncResult struct {
	DocumentID    string        `json:"document_id"`
	Namespace     string        `json:"namespace"`
	Success       bool          `json:"success"`
	Skipped       bool          `json:"skipped"`
	SkipReason    string        `json:"skip_reason,omitempty"`
	ChunksWritten int           `json:"chunks_written"`
	ChunksDeleted bool          `json:"chunks_deleted"`
	Error         string        `json:"error,omitempty"`
	Duration      time.Duration `json:"duration"`
}
