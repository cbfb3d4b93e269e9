package model

// 摄取任务的阶段枚举，阶段只会单向推进：start → extract → split → index → done。
const (
	StageStart   = "start"
	StageExtract = "extract"
	StageSplit   = "split"
	StageIndex   = "index"
	StageDone    = "done"
)

// 摄取任务的状态枚举。
const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusError      = "error"
	StatusUnknown    = "unknown"
)

// IngestionJob 是持久化在 Redis 中的单个摄取任务进度记录。
// 记录只由任务所属的后台工作者更新，阶段与百分比单调递增；
// 终态为 ready（stage=done, percent=100）或 error（message 非空）。
type IngestionJob struct {
	JobID       string  `json:"job_id"`
	Title       string  `json:"title"`
	Stage       string  `json:"stage"`
	Status      string  `json:"status"`
	TotalChunks int     `json:"total_chunks"`
	Ingested    int     `json:"ingested"`
	Percent     int     `json:"percent"`
	StartedAt   float64 `json:"started_at"` // Unix 秒
	UpdatedAt   float64 `json:"updated_at"`
	EtaSeconds  *int    `json:"eta_seconds,omitempty"`
	Message     string  `json:"message,omitempty"`
	Recovered   bool    `json:"recovered,omitempty"`
}

// JobUpdate 是单次进度更新的部分字段，nil 字段表示不变。
type JobUpdate struct {
	Stage       string
	TotalChunks *int
	Ingested    *int
	Recovered   *bool
}

// Terminal 返回任务是否已进入终态。
func (j *IngestionJob) Terminal() bool {
	return j.Status == StatusReady || j.Status == StatusError
}
