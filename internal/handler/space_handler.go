// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"askdocs-go/internal/middleware"
	"askdocs-go/internal/service"
	"askdocs-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SpaceHandler 负责独立文档空间的上传、进度查询和问答。
type SpaceHandler struct {
	ingestService   *service.IngestService
	chatService     *service.ChatService
	documentService *service.DocumentService
}

// NewSpaceHandler 创建一个新的 SpaceHandler 实例。
func NewSpaceHandler(
	ingestService *service.IngestService,
	chatService *service.ChatService,
	documentService *service.DocumentService,
) *SpaceHandler {
	return &SpaceHandler{
		ingestService:   ingestService,
		chatService:     chatService,
		documentService: documentService,
	}
}

// Upload 接收上传的文档并创建异步摄取任务，立即返回任务 ID。
func (h *SpaceHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少上传文件"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取上传文件失败"})
		return
	}
	defer file.Close()

	jobID, err := h.ingestService.SubmitUpload(c.Request.Context(), service.UploadInput{
		Reader:      file,
		Size:        fileHeader.Size,
		ContentType: fileHeader.Header.Get("Content-Type"),
		FileName:    fileHeader.Filename,
		Title:       c.PostForm("title"),
		UserID:      middleware.CurrentUserID(c),
	})
	if err != nil {
		log.Errorf("提交摄取任务失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "提交摄取任务失败"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

// Status 查询摄取任务的进度记录。
func (h *SpaceHandler) Status(c *gin.Context) {
	job, err := h.ingestService.Status(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		log.Errorf("查询任务进度失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询任务进度失败"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// askRequest 定义了问答请求体结构。
type askRequest struct {
	Query string `json:"query" binding:"required"`
}

// Ask 在指定空间上做一次非流式的检索问答。
func (h *SpaceHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	collection := "space_" + c.Param("jobId")
	answer, contexts, err := h.chatService.AnswerOnce(c.Request.Context(), collection, req.Query)
	if err != nil {
		log.Errorf("空间问答失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "问答服务暂时不可用"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"answer":   answer,
		"contexts": contexts,
	})
}

// Stream 在指定空间上做流式检索问答，以 SSE 逐 token 返回。
func (h *SpaceHandler) Stream(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 query 参数"})
		return
	}

	collection := "space_" + c.Param("jobId")
	session, err := h.chatService.StreamOnce(c.Request.Context(), collection, query)
	if err != nil {
		log.Errorf("空间流式问答失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "问答服务暂时不可用"})
		return
	}

	writeSSE(c, session.Stream)
}

// Delete 删除一个独立空间及其向量集合。
func (h *SpaceHandler) Delete(c *gin.Context) {
	if err := h.documentService.DeleteSpace(c.Request.Context(), c.Param("jobId")); err != nil {
		log.Errorf("删除空间失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除空间失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}
