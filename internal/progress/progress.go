// Package progress 负责跟踪摄取任务的进度记录。
package progress

import (
	"context"
	"math"

	"askdocs-go/internal/model"
)

// Store 接口定义了进度记录的存取操作。
type Store interface {
	Start(ctx context.Context, jobID, title string) error
	Update(ctx context.Context, jobID string, upd model.JobUpdate) error
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID, message string) error
	Get(ctx context.Context, jobID string) (*model.IngestionJob, error)
}

var stageRank = map[string]int{
	model.StageStart:   0,
	model.StageExtract: 1,
	model.StageSplit:   2,
	model.StageIndex:   3,
	model.StageDone:    4,
}

// applyUpdate 将一次进度更新合并到任务记录上。
// 阶段与百分比只进不退，ETA 由启动以来的平均速率估算。
func applyUpdate(job *model.IngestionJob, upd model.JobUpdate, now float64) {
	if upd.Stage != "" && stageRank[upd.Stage] >= stageRank[job.Stage] {
		job.Stage = upd.Stage
	}
	if upd.TotalChunks != nil {
		job.TotalChunks = *upd.TotalChunks
	}
	if upd.Ingested != nil {
		job.Ingested = *upd.Ingested
	}
	if upd.Recovered != nil {
		job.Recovered = *upd.Recovered
	}

	if job.TotalChunks > 0 {
		percent := int(math.Round(100 * float64(job.Ingested) / float64(job.TotalChunks)))
		if percent > job.Percent {
			job.Percent = percent
		}
	}

	if job.Ingested > 0 && job.TotalChunks > job.Ingested {
		elapsed := now - job.StartedAt
		if elapsed > 0 {
			rate := float64(job.Ingested) / elapsed
			eta := int(math.Round(float64(job.TotalChunks-job.Ingested) / rate))
			job.EtaSeconds = &eta
		}
	} else {
		job.EtaSeconds = nil
	}

	job.UpdatedAt = now
}
