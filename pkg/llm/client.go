// Package llm provides clients for interacting with Large Language Models.
package llm

import (
	"context"
	"fmt"
	"net/http"

	"askdocs-go/internal/config"
)

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

// TokenFunc 在流式生成时逐 token 回调；返回非 nil 错误会中断生成。
type TokenFunc func(token string) error

// Client defines the interface for an LLM client.
// 每个 provider 变体把通用消息列表映射为自己的请求形态，
// 并把原生流/响应映射回通用 token 序列，provider 细节不越过此边界。
type Client interface {
	// Generate 非流式调用，返回完整回答文本。
	Generate(ctx context.Context, messages []Message) (string, error)
	// StreamGenerate 流式调用，对每个 token 调用 onToken；
	// 上下文取消时立即中止底层请求。
	StreamGenerate(ctx context.Context, messages []Message, onToken TokenFunc) error
}

// NewClient creates a new LLM client based on the provider in the config.
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "openai", "":
		return &openAIClient{cfg: cfg, client: &http.Client{}}, nil
	case "gemini":
		return &geminiClient{cfg: cfg, client: &http.Client{}}, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
