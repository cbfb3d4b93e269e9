// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// IngestionTask represents the data structure for a document ingestion job.
type IngestionTask struct {
	JobID      string `json:"job_id"`
	DocID      string `json:"doc_id,omitempty"` // 为空时由管道生成
	ObjectName string `json:"object_name"`
	FileName   string `json:"file_name"`
	Title      string `json:"title"`
	Collection string `json:"collection"`
	UserID     uint   `json:"user_id"`
}
