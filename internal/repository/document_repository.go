// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"errors"

	"askdocs-go/internal/model"

	"gorm.io/gorm"
)

// DocumentRepository 接口定义了文档元数据的持久化操作。
type DocumentRepository interface {
	Create(doc *model.Document) error
	FindByDocID(docID string) (*model.Document, error)
	FindAll() ([]model.Document, error)
	FindByCollection(collection string) ([]model.Document, error)
	DeleteByDocID(docID string) (bool, error)
}

// documentRepository 是 DocumentRepository 接口的 GORM 实现。
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create 在数据库中创建一条新的文档元数据记录。
func (r *documentRepository) Create(doc *model.Document) error {
	return r.db.Create(doc).Error
}

// FindByDocID 根据 doc_id 检索文档记录，不存在时返回 (nil, nil)。
func (r *documentRepository) FindByDocID(docID string) (*model.Document, error) {
	var doc model.Document
	err := r.db.Where("doc_id = ?", docID).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindAll 返回所有文档记录，按创建时间倒序。
func (r *documentRepository) FindAll() ([]model.Document, error) {
	var docs []model.Document
	err := r.db.Order("created_at desc").Find(&docs).Error
	return docs, err
}

// FindByCollection 返回指定集合下的所有文档记录。
func (r *documentRepository) FindByCollection(collection string) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.Where("collection = ?", collection).Find(&docs).Error
	return docs, err
}

// DeleteByDocID 删除指定的文档记录，返回是否确有删除。
func (r *documentRepository) DeleteByDocID(docID string) (bool, error) {
	result := r.db.Where("doc_id = ?", docID).Delete(&model.Document{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
