// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// Document 对应于数据库中的 documents 表。
// 每次成功摄取生成一条记录；checksum 仅用于展示与审计，不做内容去重——
// 重复上传相同字节会生成新的 doc_id。
type Document struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	DocID      string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"docId"`
	Title      string    `gorm:"type:varchar(255);not null" json:"title"`
	SourcePath string    `gorm:"type:varchar(512)" json:"sourcePath"`
	Checksum   string    `gorm:"type:varchar(64)" json:"checksum"`
	ChunkCount int       `gorm:"not null;default:0" json:"chunkCount"`
	Collection string    `gorm:"type:varchar(128);not null" json:"collection"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}
