package progress

import (
	"context"
	"testing"

	"askdocs-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func newJob(startedAt float64) *model.IngestionJob {
	return &model.IngestionJob{
		JobID:     "job-1",
		Stage:     model.StageStart,
		Status:    model.StatusProcessing,
		StartedAt: startedAt,
		UpdatedAt: startedAt,
	}
}

func TestApplyUpdatePercentDerivation(t *testing.T) {
	job := newJob(100)
	applyUpdate(job, model.JobUpdate{Stage: model.StageIndex, TotalChunks: intPtr(8)}, 101)
	assert.Equal(t, 0, job.Percent)

	applyUpdate(job, model.JobUpdate{Ingested: intPtr(2)}, 102)
	assert.Equal(t, 25, job.Percent)

	applyUpdate(job, model.JobUpdate{Ingested: intPtr(8)}, 103)
	assert.Equal(t, 100, job.Percent)
}

func TestApplyUpdateEta(t *testing.T) {
	job := newJob(100)
	applyUpdate(job, model.JobUpdate{Stage: model.StageIndex, TotalChunks: intPtr(10)}, 100)
	// 还没有任何进度时不给出估计
	assert.Nil(t, job.EtaSeconds)

	// 10 秒摄取 5 块，剩余 5 块按同样速率需要 10 秒
	applyUpdate(job, model.JobUpdate{Ingested: intPtr(5)}, 110)
	require.NotNil(t, job.EtaSeconds)
	assert.Equal(t, 10, *job.EtaSeconds)

	// 全部完成后不再有估计
	applyUpdate(job, model.JobUpdate{Ingested: intPtr(10)}, 120)
	assert.Nil(t, job.EtaSeconds)
}

func TestApplyUpdateStageMonotonic(t *testing.T) {
	job := newJob(100)
	applyUpdate(job, model.JobUpdate{Stage: model.StageSplit}, 101)
	assert.Equal(t, model.StageSplit, job.Stage)

	// 阶段不允许回退
	applyUpdate(job, model.JobUpdate{Stage: model.StageExtract}, 102)
	assert.Equal(t, model.StageSplit, job.Stage)

	applyUpdate(job, model.JobUpdate{Stage: model.StageIndex}, 103)
	assert.Equal(t, model.StageIndex, job.Stage)
}

func TestApplyUpdatePercentMonotonic(t *testing.T) {
	job := newJob(100)
	applyUpdate(job, model.JobUpdate{Stage: model.StageIndex, TotalChunks: intPtr(4), Ingested: intPtr(3)}, 101)
	assert.Equal(t, 75, job.Percent)

	// 恢复重建会把 ingested 归零，但展示的百分比不回退
	recovered := true
	applyUpdate(job, model.JobUpdate{Ingested: intPtr(0), Recovered: &recovered}, 102)
	assert.Equal(t, 75, job.Percent)
	assert.True(t, job.Recovered)
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Start(ctx, "job-1", "测试文档"))
	job, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.StageStart, job.Stage)
	assert.Equal(t, model.StatusProcessing, job.Status)

	require.NoError(t, store.Update(ctx, "job-1", model.JobUpdate{
		Stage:       model.StageIndex,
		TotalChunks: intPtr(2),
		Ingested:    intPtr(2),
	}))
	require.NoError(t, store.Complete(ctx, "job-1"))

	job, err = store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, job.Status)
	assert.Equal(t, model.StageDone, job.Stage)
	assert.Equal(t, 100, job.Percent)
	assert.Nil(t, job.EtaSeconds)
}

func TestMemoryStoreTerminalRejectsUpdates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Start(ctx, "job-1", "测试文档"))
	require.NoError(t, store.Fail(ctx, "job-1", "抽取失败"))

	// 终态之后的更新直接忽略
	require.NoError(t, store.Update(ctx, "job-1", model.JobUpdate{Stage: model.StageIndex}))

	job, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, job.Status)
	assert.Equal(t, "抽取失败", job.Message)
	assert.NotEqual(t, model.StageIndex, job.Stage)
}

func TestMemoryStoreUnknownJob(t *testing.T) {
	store := NewMemoryStore()
	job, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnknown, job.Status)
}
