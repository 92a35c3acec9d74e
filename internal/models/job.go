package models

// ParseJob is the immutable payload carried over the job queue from
// the ingestion service to the worker pool.
type ParseJob struct {
	FileID  string `json:"file_id"`
	Locator string `json:"storage_locator"`
	TypeTag string `json:"file_type"`
}
