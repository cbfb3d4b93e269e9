// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"askdocs-go/internal/config"
	"askdocs-go/pkg/vectorindex"

	"github.com/gin-gonic/gin"
)

// HealthHandler 提供存活与就绪探针。
type HealthHandler struct {
	es *vectorindex.ES
}

// NewHealthHandler 创建一个新的 HealthHandler 实例。
func NewHealthHandler(es *vectorindex.ES) *HealthHandler {
	return &HealthHandler{es: es}
}

// Live 存活探针，进程在即返回 ok。
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready 就绪探针：检查向量索引连通性和模型服务配置。
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if err := h.es.Ping(c.Request.Context()); err != nil {
		checks["elasticsearch"] = err.Error()
		healthy = false
	} else {
		checks["elasticsearch"] = "ok"
	}

	if config.Conf.Embedding.BaseURL == "" {
		checks["embedding"] = "未配置"
		healthy = false
	} else {
		checks["embedding"] = "ok"
	}

	if config.Conf.LLM.BaseURL == "" && config.Conf.LLM.APIKey == "" {
		checks["llm"] = "未配置"
		healthy = false
	} else {
		checks["llm"] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"checks": checks})
}
