// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"
	"strconv"

	"askdocs-go/internal/service"
	"askdocs-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DailyHandler 负责每日知识条目的查询与生成接口。
type DailyHandler struct {
	dailyService *service.DailyService
}

// NewDailyHandler 创建一个新的 DailyHandler 实例。
func NewDailyHandler(dailyService *service.DailyService) *DailyHandler {
	return &DailyHandler{dailyService: dailyService}
}

// Get 返回今天的条目，可用 field 参数过滤单个领域。
func (h *DailyHandler) Get(c *gin.Context) {
	nuggets, err := h.dailyService.GetByDate("")
	if err != nil {
		log.Errorf("获取每日内容失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取每日内容失败"})
		return
	}

	if field := c.Query("field"); field != "" {
		for _, n := range nuggets {
			if n.Field == field {
				c.JSON(http.StatusOK, n)
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "该领域今日暂无内容"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"nuggets": nuggets})
}

// Archive 返回历史条目，date 参数可定位某一天。
func (h *DailyHandler) Archive(c *gin.Context) {
	if date := c.Query("date"); date != "" {
		nuggets, err := h.dailyService.GetByDate(date)
		if err != nil {
			log.Errorf("获取历史内容失败: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "获取历史内容失败"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"nuggets": nuggets})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	nuggets, err := h.dailyService.Archive(limit)
	if err != nil {
		log.Errorf("获取历史内容失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取历史内容失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nuggets": nuggets})
}

// Generate 为全部领域生成今天的内容。
func (h *DailyHandler) Generate(c *gin.Context) {
	nuggets, err := h.dailyService.GenerateToday(c.Request.Context())
	if err != nil {
		log.Errorf("生成每日内容失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成每日内容失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nuggets": nuggets})
}
