package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"askdocs-go/internal/model"

	"github.com/go-redis/redis/v8"
)

const (
	jobKeyPrefix = "ingest:job:"
	// 任务记录保留 7 天，之后查询视为 unknown
	jobTTL = 7 * 24 * time.Hour
)

// redisStore 是 Store 接口的 Redis 实现，整条记录以 JSON 形式存储。
type redisStore struct {
	rdb *redis.Client
	now func() float64
}

// NewRedisStore 创建一个基于 Redis 的进度存储。
func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{
		rdb: rdb,
		now: func() float64 { return float64(time.Now().UnixMilli()) / 1000 },
	}
}

func (s *redisStore) Start(ctx context.Context, jobID, title string) error {
	now := s.now()
	job := &model.IngestionJob{
		JobID:     jobID,
		Title:     title,
		Stage:     model.StageStart,
		Status:    model.StatusProcessing,
		StartedAt: now,
		UpdatedAt: now,
	}
	return s.save(ctx, job)
}

func (s *redisStore) Update(ctx context.Context, jobID string, upd model.JobUpdate) error {
	job, err := s.load(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil || job.Terminal() {
		// 终态记录不再接受更新
		return nil
	}
	applyUpdate(job, upd, s.now())
	return s.save(ctx, job)
}

func (s *redisStore) Complete(ctx context.Context, jobID string) error {
	job, err := s.load(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}
	job.Stage = model.StageDone
	job.Status = model.StatusReady
	job.Percent = 100
	job.EtaSeconds = nil
	job.UpdatedAt = s.now()
	return s.save(ctx, job)
}

func (s *redisStore) Fail(ctx context.Context, jobID, message string) error {
	job, err := s.load(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}
	job.Status = model.StatusError
	job.Message = message
	job.EtaSeconds = nil
	job.UpdatedAt = s.now()
	return s.save(ctx, job)
}

// Get 返回任务进度；记录不存在时返回 unknown 状态而非错误。
func (s *redisStore) Get(ctx context.Context, jobID string) (*model.IngestionJob, error) {
	job, err := s.load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return &model.IngestionJob{JobID: jobID, Status: model.StatusUnknown}, nil
	}
	return job, nil
}

func (s *redisStore) load(ctx context.Context, jobID string) (*model.IngestionJob, error) {
	data, err := s.rdb.Get(ctx, jobKeyPrefix+jobID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取任务进度失败: %w", err)
	}
	var job model.IngestionJob
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("解析任务进度失败: %w", err)
	}
	return &job, nil
}

func (s *redisStore) save(ctx context.Context, job *model.IngestionJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("序列化任务进度失败: %w", err)
	}
	if err := s.rdb.Set(ctx, jobKeyPrefix+job.JobID, data, jobTTL).Err(); err != nil {
		return fmt.Errorf("写入任务进度失败: %w", err)
	}
	return nil
}
