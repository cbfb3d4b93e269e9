// Package retrieval 负责查询向量索引并组装带引用的提示词。
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"askdocs-go/internal/model"
	"askdocs-go/pkg/embedding"
	"askdocs-go/pkg/llm"
	"askdocs-go/pkg/vectorindex"
)

// systemPrompt 要求模型只依据检索内容作答并给出引用。
const systemPrompt = "Answer using ONLY the provided context. " +
	"Cite sources as [doc_id:chunk_id]. If unsure, say you don't know."

// Retriever 封装查询向量化与相似度检索。
type Retriever struct {
	embedder embedding.Client
	index    vectorindex.Index
	topK     int
}

// New 创建检索器。
func New(embedder embedding.Client, index vectorindex.Index, topK int) *Retriever {
	if topK <= 0 {
		topK = 6
	}
	return &Retriever{embedder: embedder, index: index, topK: topK}
}

// Retrieve 对查询向量化后在指定集合中检索最相关的片段。
func (r *Retriever) Retrieve(ctx context.Context, collection, query string) ([]model.RetrievedContext, error) {
	vectors, err := r.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("查询向量化失败: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("查询向量化返回数量异常: %d", len(vectors))
	}

	results, err := r.index.Search(ctx, collection, embedding.Normalize(vectors[0]), r.topK)
	if err != nil {
		return nil, fmt.Errorf("向量检索失败: %w", err)
	}

	contexts := make([]model.RetrievedContext, 0, len(results))
	for _, res := range results {
		contexts = append(contexts, model.RetrievedContext{
			DocID:      res.Payload.DocID,
			ChunkIndex: res.Payload.ChunkIndex,
			Text:       res.Payload.Text,
			Title:      res.Payload.Title,
			Score:      res.Score,
		})
	}
	return contexts, nil
}

// BuildPrompt 将检索结果与问题拼装为发给模型的消息序列。
// history 追加在系统消息之后、当前问题之前。
func BuildPrompt(contexts []model.RetrievedContext, history []model.ChatMessage, question string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	for _, msg := range history {
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}

	var sb strings.Builder
	sb.WriteString("Context:\n")
	if len(contexts) == 0 {
		sb.WriteString("(no context)")
	} else {
		blocks := make([]string, 0, len(contexts))
		for _, c := range contexts {
			blocks = append(blocks, fmt.Sprintf("[%s:%d] %s", c.DocID, c.ChunkIndex, c.Text))
		}
		sb.WriteString(strings.Join(blocks, "\n\n"))
	}
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)

	messages = append(messages, llm.Message{Role: "user", Content: sb.String()})
	return messages
}
