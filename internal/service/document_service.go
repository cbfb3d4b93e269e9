package service

import (
	"context"
	"errors"

	"askdocs-go/internal/model"
	"askdocs-go/internal/repository"
	"askdocs-go/pkg/log"
	"askdocs-go/pkg/storage"
	"askdocs-go/pkg/vectorindex"
)

// ErrDocumentNotFound 表示目标文档不存在。
var ErrDocumentNotFound = errors.New("文档不存在")

// DocumentService 负责文档元数据管理与独立空间的清理。
type DocumentService struct {
	docRepo repository.DocumentRepository
	index   vectorindex.Index
	bucket  string

	// 对象删除入口，单测中可替换
	removeObject func(ctx context.Context, bucket, object string)
}

// NewDocumentService 创建文档管理服务。
func NewDocumentService(docRepo repository.DocumentRepository, index vectorindex.Index, bucket string) *DocumentService {
	return &DocumentService{
		docRepo:      docRepo,
		index:        index,
		bucket:       bucket,
		removeObject: storage.RemoveObject,
	}
}

// List 返回全部文档元数据。
func (s *DocumentService) List() ([]model.Document, error) {
	return s.docRepo.FindAll()
}

// Delete 删除文档元数据记录。向量数据不随之删除。
func (s *DocumentService) Delete(docID string) error {
	deleted, err := s.docRepo.DeleteByDocID(docID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrDocumentNotFound
	}
	return nil
}

// DeleteSpace 删除独立空间：尽力删除向量集合，再清理其下的文档记录。
func (s *DocumentService) DeleteSpace(ctx context.Context, jobID string) error {
	collection := "space_" + jobID
	if err := s.index.DropCollection(ctx, collection); err != nil {
		// 集合删除失败只记日志，元数据照常清理
		log.Warnf("删除向量集合失败, collection: %s, err: %v", collection, err)
	}

	docs, err := s.docRepo.FindByCollection(collection)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		// 上传到 MinIO 的源文件随空间一并清理，失败仅记日志
		if doc.SourcePath != "" {
			s.removeObject(ctx, s.bucket, doc.SourcePath)
		}
		if _, err := s.docRepo.DeleteByDocID(doc.DocID); err != nil {
			return err
		}
	}
	return nil
}
