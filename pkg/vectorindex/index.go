// Package vectorindex 提供了集合级别的向量索引客户端（Elasticsearch 实现）。
package vectorindex

import (
	"context"
	"errors"
	"sort"
)

// ErrDimensionMismatch 表示目标集合已存在且向量维度与期望不符。
var ErrDimensionMismatch = errors.New("vector index: collection dimension mismatch")

// Payload 是随向量一起写入索引的载荷，检索命中后用于引用标注。
type Payload struct {
	DocID      string `json:"doc_id"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	Title      string `json:"title"`
	SourcePath string `json:"source_path"`
	Checksum   string `json:"checksum"`
}

// Record 是一条待写入索引的向量记录。
type Record struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// SearchResult 是一条检索命中，按相似度得分降序返回。
type SearchResult struct {
	Payload Payload
	Score   float64
}

// Index 定义了管道所消费的向量索引契约。
type Index interface {
	// EnsureCollection 幂等地创建集合；已存在且维度不符时返回 ErrDimensionMismatch。
	EnsureCollection(ctx context.Context, name string, dim int) error
	// Upsert 批量写入记录；同 ID 覆盖。
	Upsert(ctx context.Context, name string, records []Record) error
	// Search 返回与向量最相近的 k 条记录，得分降序，平分时按 chunk_index 升序、doc_id 升序。
	Search(ctx context.Context, name string, vector []float32, k int) ([]SearchResult, error)
	// DropCollection 尽力而为地删除集合。
	DropCollection(ctx context.Context, name string) error
}

// rankResults 对命中结果做确定性排序：得分降序，平分时 chunk_index 升序、doc_id 升序。
func rankResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Payload.ChunkIndex != results[j].Payload.ChunkIndex {
			return results[i].Payload.ChunkIndex < results[j].Payload.ChunkIndex
		}
		return results[i].Payload.DocID < results[j].Payload.DocID
	})
}
