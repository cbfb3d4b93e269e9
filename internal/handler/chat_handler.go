// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"askdocs-go/internal/middleware"
	"askdocs-go/internal/service"
	"askdocs-go/internal/streamer"
	"askdocs-go/pkg/log"
	"askdocs-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责共享语料库上的问答，包括 HTTP 和 WebSocket 两种入口。
type ChatHandler struct {
	chatService *service.ChatService
	jwtManager  *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler 实例。
func NewChatHandler(chatService *service.ChatService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{chatService: chatService, jwtManager: jwtManager}
}

// Ask 处理非流式问答请求，回答会写入用户当前会话的历史。
func (h *ChatHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	userID := middleware.CurrentUserID(c)
	answer, session, err := h.chatService.Ask(c.Request.Context(), userID, req.Query)
	if err != nil {
		log.Errorf("问答失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "AI服务暂时不可用，请稍后重试"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"answer":          answer,
		"conversation_id": session.ConversationID,
		"contexts":        session.Contexts,
	})
}

// Stream 处理流式问答请求，以 SSE 逐 token 返回。
// 客户端断开连接会随请求上下文一起取消生成。
func (h *ChatHandler) Stream(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 query 参数"})
		return
	}

	userID := middleware.CurrentUserID(c)
	session, err := h.chatService.PrepareStream(c.Request.Context(), userID, query)
	if err != nil {
		log.Errorf("流式问答失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "AI服务暂时不可用，请稍后重试"})
		return
	}

	answer, completed := writeSSE(c, session.Stream)
	if completed {
		h.chatService.SaveExchange(c.Request.Context(), session.ConversationID, query, answer)
	}
}

// HandleWS 处理一个传入的 WebSocket 连接。
// 纯文本消息视为问题；JSON 停止指令 {"type":"stop"} 会中断当前的流式生成。
func (h *ChatHandler) HandleWS(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的 token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，用户: %s", claims.Username)

	var writeMu sync.Mutex
	writeJSON := func(v interface{}) {
		writeMu.Lock()
		defer writeMu.Unlock()
		b, _ := json.Marshal(v)
		_ = conn.WriteMessage(websocket.TextMessage, b)
	}

	var cancelMu sync.Mutex
	var cancelCurrent context.CancelFunc
	var running sync.WaitGroup

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		// JSON 停止指令: {"type":"stop"}
		if len(message) > 0 && message[0] == '{' {
			var ctrl map[string]interface{}
			if err := json.Unmarshal(message, &ctrl); err == nil {
				if t, ok := ctrl["type"].(string); ok && t == "stop" {
					cancelMu.Lock()
					if cancelCurrent != nil {
						cancelCurrent()
						cancelCurrent = nil
					}
					cancelMu.Unlock()
					writeJSON(map[string]interface{}{
						"type":      "stop",
						"message":   "响应已停止",
						"timestamp": time.Now().UnixMilli(),
					})
					continue
				}
			}
		}

		question := strings.TrimSpace(string(message))
		if question == "" {
			continue
		}

		// 为本次生成建立可取消的上下文
		genCtx, cancel := context.WithCancel(c.Request.Context())
		cancelMu.Lock()
		cancelCurrent = cancel
		cancelMu.Unlock()

		running.Add(1)
		go func(question string) {
			defer running.Done()
			defer cancel()
			h.streamToWS(genCtx, claims.UserID, question, writeJSON)
		}(question)
	}

	// 连接关闭后中断尚在进行的生成
	cancelMu.Lock()
	if cancelCurrent != nil {
		cancelCurrent()
	}
	cancelMu.Unlock()
	running.Wait()
}

// streamToWS 执行一次流式问答并把事件写到 WebSocket 连接上。
func (h *ChatHandler) streamToWS(ctx context.Context, userID uint, question string, writeJSON func(v interface{})) {
	session, err := h.chatService.PrepareStream(ctx, userID, question)
	if err != nil {
		log.Errorf("处理流式响应失败: %v", err)
		writeJSON(map[string]string{"error": "AI服务暂时不可用，请稍后重试"})
		return
	}

	var answer strings.Builder
	for ev := range session.Stream.Events() {
		switch ev.Type {
		case streamer.EventToken:
			answer.WriteString(ev.Token)
			writeJSON(map[string]interface{}{"type": "token", "content": ev.Token})
		case streamer.EventEnd:
			writeJSON(map[string]interface{}{
				"type":      "completion",
				"status":    "finished",
				"message":   "响应已完成",
				"timestamp": time.Now().UnixMilli(),
			})
			h.chatService.SaveExchange(context.WithoutCancel(ctx), session.ConversationID, question, answer.String())
			return
		case streamer.EventError:
			log.Errorf("处理流式响应失败: %v", ev.Err)
			writeJSON(map[string]string{"error": "AI服务暂时不可用，请稍后重试"})
			return
		}
	}
}
