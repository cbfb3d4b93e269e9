package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"askdocs-go/internal/model"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	conversationKeyPrefix  = "conversation:"
	currentConversationFmt = "user:%d:current_conversation"
	// 会话只保留最近的消息，避免提示词无限膨胀
	maxHistoryMessages = 20
	conversationTTL    = 7 * 24 * time.Hour
)

// ConversationRepository 接口定义了对话历史的存取操作。
type ConversationRepository interface {
	GetOrCreateConversationID(ctx context.Context, userID uint) (string, error)
	AppendMessages(ctx context.Context, conversationID string, messages ...model.ChatMessage) error
	GetHistory(ctx context.Context, conversationID string) ([]model.ChatMessage, error)
}

type conversationRepository struct {
	rdb *redis.Client
}

// NewConversationRepository 创建一个基于 Redis 的对话历史仓库。
func NewConversationRepository(rdb *redis.Client) ConversationRepository {
	return &conversationRepository{rdb: rdb}
}

// GetOrCreateConversationID 返回用户当前会话 ID，不存在时新建。
func (r *conversationRepository) GetOrCreateConversationID(ctx context.Context, userID uint) (string, error) {
	key := fmt.Sprintf(currentConversationFmt, userID)
	conversationID, err := r.rdb.Get(ctx, key).Result()
	if err == nil {
		// 顺延会话指针的有效期
		r.rdb.Expire(ctx, key, conversationTTL)
		return conversationID, nil
	}
	if err != redis.Nil {
		return "", fmt.Errorf("查询当前会话失败: %w", err)
	}

	conversationID = uuid.NewString()
	if err := r.rdb.Set(ctx, key, conversationID, conversationTTL).Err(); err != nil {
		return "", fmt.Errorf("创建会话失败: %w", err)
	}
	return conversationID, nil
}

// AppendMessages 追加消息并裁剪到最近 maxHistoryMessages 条。
func (r *conversationRepository) AppendMessages(ctx context.Context, conversationID string, messages ...model.ChatMessage) error {
	key := conversationKeyPrefix + conversationID
	pipe := r.rdb.Pipeline()
	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("序列化消息失败: %w", err)
		}
		pipe.RPush(ctx, key, data)
	}
	pipe.LTrim(ctx, key, -maxHistoryMessages, -1)
	pipe.Expire(ctx, key, conversationTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("写入会话历史失败: %w", err)
	}
	return nil
}

// GetHistory 返回会话中保留的全部消息，按时间顺序。
func (r *conversationRepository) GetHistory(ctx context.Context, conversationID string) ([]model.ChatMessage, error) {
	key := conversationKeyPrefix + conversationID
	items, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("读取会话历史失败: %w", err)
	}
	messages := make([]model.ChatMessage, 0, len(items))
	for _, item := range items {
		var msg model.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			// 跳过坏数据，不让单条损坏阻断整个会话
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
