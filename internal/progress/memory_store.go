package progress

import (
	"context"
	"sync"
	"time"

	"askdocs-go/internal/model"
)

// MemoryStore 是 Store 接口的内存实现，用于测试和本地开发。
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*model.IngestionJob
	Now  func() float64
}

// NewMemoryStore 创建一个内存进度存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*model.IngestionJob),
		Now:  func() float64 { return float64(time.Now().UnixMilli()) / 1000 },
	}
}

func (s *MemoryStore) Start(_ context.Context, jobID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Now()
	s.jobs[jobID] = &model.IngestionJob{
		JobID:     jobID,
		Title:     title,
		Stage:     model.StageStart,
		Status:    model.StatusProcessing,
		StartedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (s *MemoryStore) Update(_ context.Context, jobID string, upd model.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.Terminal() {
		return nil
	}
	applyUpdate(job, upd, s.Now())
	return nil
}

func (s *MemoryStore) Complete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil
	}
	job.Stage = model.StageDone
	job.Status = model.StatusReady
	job.Percent = 100
	job.EtaSeconds = nil
	job.UpdatedAt = s.Now()
	return nil
}

func (s *MemoryStore) Fail(_ context.Context, jobID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil
	}
	job.Status = model.StatusError
	job.Message = message
	job.EtaSeconds = nil
	job.UpdatedAt = s.Now()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, jobID string) (*model.IngestionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return &model.IngestionJob{JobID: jobID, Status: model.StatusUnknown}, nil
	}
	cloned := *job
	if job.EtaSeconds != nil {
		eta := *job.EtaSeconds
		cloned.EtaSeconds = &eta
	}
	return &cloned, nil
}
