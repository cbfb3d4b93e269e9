// Package model 包含了应用的数据模型定义。
package model

import "time"

// ChatMessage 代表存储在 Redis 中的单条对话消息。
type ChatMessage struct {
	Role      string    `json:"role"` // "user" 或 "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// RetrievedContext 是返回给前端的单条检索命中。
type RetrievedContext struct {
	DocID      string  `json:"docId"`
	ChunkIndex int     `json:"chunkIndex"`
	Text       string  `json:"text"`
	Title      string  `json:"title"`
	Score      float64 `json:"score"`
}
