// Package service 实现业务逻辑层，衔接 HTTP 边界与底层组件。
package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"askdocs-go/internal/model"
	"askdocs-go/internal/pipeline"
	"askdocs-go/internal/progress"
	"askdocs-go/pkg/queue"
	"askdocs-go/pkg/storage"
	"askdocs-go/pkg/tasks"

	"github.com/google/uuid"
)

// UploadInput 是一次文档上传的输入。
type UploadInput struct {
	Reader      io.Reader
	Size        int64
	ContentType string
	FileName    string
	Title       string
	Collection  string
	UserID      uint
}

// IngestService 负责接收上传、登记任务并派发到摄取队列。
type IngestService struct {
	bucket   string
	store    progress.Store
	pipeline *pipeline.Pipeline
}

// NewIngestService 创建摄取服务。
func NewIngestService(bucket string, store progress.Store, pl *pipeline.Pipeline) *IngestService {
	return &IngestService{bucket: bucket, store: store, pipeline: pl}
}

// SubmitUpload 保存上传文件、创建任务记录并投递到队列，立即返回任务 ID。
// Collection 为空时按任务 ID 生成独立空间集合。
func (s *IngestService) SubmitUpload(ctx context.Context, in UploadInput) (string, error) {
	jobID := uuid.NewString()
	collection := in.Collection
	if collection == "" {
		collection = "space_" + jobID
	}
	title := in.Title
	if title == "" {
		title = in.FileName
	}

	objectName := fmt.Sprintf("uploads/%s_%s", uuid.NewString(), filepath.Base(in.FileName))
	if err := storage.SaveUpload(ctx, s.bucket, objectName, in.Reader, in.Size, in.ContentType); err != nil {
		return "", fmt.Errorf("保存上传文件失败: %w", err)
	}

	if err := s.store.Start(ctx, jobID, title); err != nil {
		return "", err
	}

	task := tasks.IngestionTask{
		JobID:      jobID,
		ObjectName: objectName,
		FileName:   in.FileName,
		Title:      title,
		Collection: collection,
		UserID:     in.UserID,
	}
	if err := queue.ProduceIngestionTask(ctx, task); err != nil {
		// 任务没能入队，直接把记录置为失败，避免前端空等
		_ = s.store.Fail(ctx, jobID, "任务投递失败")
		return "", fmt.Errorf("投递摄取任务失败: %w", err)
	}
	return jobID, nil
}

// IngestSync 同步执行一次摄取，用于管理端向共享语料库导入文档。
func (s *IngestService) IngestSync(ctx context.Context, in UploadInput) (*model.Document, string, error) {
	jobID := uuid.NewString()
	title := in.Title
	if title == "" {
		title = in.FileName
	}

	objectName := fmt.Sprintf("uploads/%s_%s", uuid.NewString(), filepath.Base(in.FileName))
	if err := storage.SaveUpload(ctx, s.bucket, objectName, in.Reader, in.Size, in.ContentType); err != nil {
		return nil, "", fmt.Errorf("保存上传文件失败: %w", err)
	}

	if err := s.store.Start(ctx, jobID, title); err != nil {
		return nil, "", err
	}

	doc, err := s.pipeline.Ingest(ctx, tasks.IngestionTask{
		JobID:      jobID,
		ObjectName: objectName,
		FileName:   in.FileName,
		Title:      title,
		Collection: in.Collection,
		UserID:     in.UserID,
	})
	if err != nil {
		return nil, jobID, err
	}
	return doc, jobID, nil
}

// Status 查询摄取任务进度。
func (s *IngestService) Status(ctx context.Context, jobID string) (*model.IngestionJob, error) {
	return s.store.Get(ctx, jobID)
}
