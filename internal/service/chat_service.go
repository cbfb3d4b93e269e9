package service

import (
	"context"
	"time"

	"askdocs-go/internal/model"
	"askdocs-go/internal/repository"
	"askdocs-go/internal/retrieval"
	"askdocs-go/internal/streamer"
	"askdocs-go/pkg/log"
)

// ChatService 实现基于检索增强的问答，支持一次性回答与流式回答。
type ChatService struct {
	retriever        *retrieval.Retriever
	answerer         *streamer.AnswerStreamer
	convRepo         repository.ConversationRepository
	corpusCollection string
}

// NewChatService 创建问答服务。
func NewChatService(
	retriever *retrieval.Retriever,
	answerer *streamer.AnswerStreamer,
	convRepo repository.ConversationRepository,
	corpusCollection string,
) *ChatService {
	return &ChatService{
		retriever:        retriever,
		answerer:         answerer,
		convRepo:         convRepo,
		corpusCollection: corpusCollection,
	}
}

// StreamSession 是一次流式问答的会话上下文。
type StreamSession struct {
	ConversationID string
	Contexts       []model.RetrievedContext
	Stream         *streamer.Stream
}

// AnswerOnce 在指定集合上做一次无历史的检索问答。
func (s *ChatService) AnswerOnce(ctx context.Context, collection, question string) (string, []model.RetrievedContext, error) {
	contexts, err := s.retriever.Retrieve(ctx, collection, question)
	if err != nil {
		return "", nil, err
	}
	messages := retrieval.BuildPrompt(contexts, nil, question)
	answer, err := s.answerer.Generate(ctx, messages)
	if err != nil {
		return "", nil, err
	}
	return answer, contexts, nil
}

// StreamOnce 在指定集合上发起一次无历史的流式检索问答。
func (s *ChatService) StreamOnce(ctx context.Context, collection, question string) (*StreamSession, error) {
	contexts, err := s.retriever.Retrieve(ctx, collection, question)
	if err != nil {
		return nil, err
	}
	messages := retrieval.BuildPrompt(contexts, nil, question)
	return &StreamSession{
		Contexts: contexts,
		Stream:   s.answerer.Stream(ctx, messages),
	}, nil
}

// Ask 在共享语料库上做带会话历史的问答，并把这一轮对话写回历史。
func (s *ChatService) Ask(ctx context.Context, userID uint, question string) (string, *StreamSession, error) {
	conversationID, history, err := s.loadHistory(ctx, userID)
	if err != nil {
		return "", nil, err
	}

	contexts, err := s.retriever.Retrieve(ctx, s.corpusCollection, question)
	if err != nil {
		return "", nil, err
	}
	messages := retrieval.BuildPrompt(contexts, history, question)
	answer, err := s.answerer.Generate(ctx, messages)
	if err != nil {
		return "", nil, err
	}

	s.saveExchange(ctx, conversationID, question, answer)
	return answer, &StreamSession{ConversationID: conversationID, Contexts: contexts}, nil
}

// PrepareStream 在共享语料库上发起带会话历史的流式问答。
// 调用方消费完 token 后应调用 SaveExchange 落盘这一轮对话。
func (s *ChatService) PrepareStream(ctx context.Context, userID uint, question string) (*StreamSession, error) {
	conversationID, history, err := s.loadHistory(ctx, userID)
	if err != nil {
		return nil, err
	}

	contexts, err := s.retriever.Retrieve(ctx, s.corpusCollection, question)
	if err != nil {
		return nil, err
	}
	messages := retrieval.BuildPrompt(contexts, history, question)
	return &StreamSession{
		ConversationID: conversationID,
		Contexts:       contexts,
		Stream:         s.answerer.Stream(ctx, messages),
	}, nil
}

// SaveExchange 把一轮完整的问答写入会话历史。
func (s *ChatService) SaveExchange(ctx context.Context, conversationID, question, answer string) {
	s.saveExchange(ctx, conversationID, question, answer)
}

func (s *ChatService) loadHistory(ctx context.Context, userID uint) (string, []model.ChatMessage, error) {
	conversationID, err := s.convRepo.GetOrCreateConversationID(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	history, err := s.convRepo.GetHistory(ctx, conversationID)
	if err != nil {
		return "", nil, err
	}
	return conversationID, history, nil
}

func (s *ChatService) saveExchange(ctx context.Context, conversationID, question, answer string) {
	now := time.Now()
	err := s.convRepo.AppendMessages(ctx, conversationID,
		model.ChatMessage{Role: "user", Content: question, Timestamp: now},
		model.ChatMessage{Role: "assistant", Content: answer, Timestamp: now},
	)
	if err != nil {
		// 历史写入失败不影响已经产出的回答
		log.Warnf("写入会话历史失败, conversation_id: %s, err: %v", conversationID, err)
	}
}
