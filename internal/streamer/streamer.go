// Package streamer 把模型的流式输出转换为可消费的事件通道。
package streamer

import (
	"context"

	"askdocs-go/pkg/llm"
)

// 事件类型。end 只在生成正常完成时发出。
const (
	EventToken = "token"
	EventEnd   = "end"
	EventError = "error"
)

// Event 是流式回答中的一个事件。
type Event struct {
	Type  string
	Token string
	Err   error
}

// Stream 是一次进行中的流式生成。
type Stream struct {
	events chan Event
}

// Events 返回事件通道，生成结束后关闭。
func (s *Stream) Events() <-chan Event {
	return s.events
}

// AnswerStreamer 封装对模型客户端的流式调用。
type AnswerStreamer struct {
	client llm.Client
}

// New 创建回答流转换器。
func New(client llm.Client) *AnswerStreamer {
	return &AnswerStreamer{client: client}
}

// Stream 发起流式生成并通过事件通道逐 token 返回。
// 取消 ctx 会中断生成，此时以 error 事件收尾而非 end。
func (a *AnswerStreamer) Stream(ctx context.Context, messages []llm.Message) *Stream {
	s := &Stream{events: make(chan Event)}
	go func() {
		defer close(s.events)
		err := a.client.StreamGenerate(ctx, messages, func(token string) error {
			select {
			case s.events <- Event{Type: EventToken, Token: token}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			select {
			case s.events <- Event{Type: EventError, Err: err}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case s.events <- Event{Type: EventEnd}:
		case <-ctx.Done():
		}
	}()
	return s
}

// Generate 是非流式生成的直通调用。
func (a *AnswerStreamer) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	return a.client.Generate(ctx, messages)
}
