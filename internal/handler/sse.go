package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"askdocs-go/internal/streamer"
	"askdocs-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// writeSSE 把流式回答以 Server-Sent Events 形式写给客户端。
// 每个 token 一条 event: token，正常结束时追加 event: end, data: [DONE]；
// 生成中途出错直接断流，不发送 end 事件。
// 返回完整拼接的回答和是否正常完成。
func writeSSE(c *gin.Context, stream *streamer.Stream) (string, bool) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "当前连接不支持流式响应"})
		return "", false
	}

	var answer strings.Builder
	for ev := range stream.Events() {
		switch ev.Type {
		case streamer.EventToken:
			answer.WriteString(ev.Token)
			// token 可能包含换行，JSON 编码后再写入 data 行
			data, err := json.Marshal(ev.Token)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "event: token\ndata: %s\n\n", data)
			flusher.Flush()
		case streamer.EventEnd:
			fmt.Fprint(c.Writer, "event: end\ndata: [DONE]\n\n")
			flusher.Flush()
			return answer.String(), true
		case streamer.EventError:
			log.Errorf("流式生成失败: %v", ev.Err)
			return answer.String(), false
		}
	}
	return answer.String(), false
}
