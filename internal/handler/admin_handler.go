// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"askdocs-go/internal/middleware"
	"askdocs-go/internal/service"
	"askdocs-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责管理端的文档维护接口。
type AdminHandler struct {
	ingestService    *service.IngestService
	documentService  *service.DocumentService
	corpusCollection string
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(
	ingestService *service.IngestService,
	documentService *service.DocumentService,
	corpusCollection string,
) *AdminHandler {
	return &AdminHandler{
		ingestService:    ingestService,
		documentService:  documentService,
		corpusCollection: corpusCollection,
	}
}

// IngestDocument 同步把一份文档摄取进共享语料库，完成后返回文档元数据。
func (h *AdminHandler) IngestDocument(c *gin.Context) {
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

	doc, jobID, err := h.ingestService.IngestSync(c.Request.Context(), service.UploadInput{
		Reader:      file,
		Size:        fileHeader.Size,
		ContentType: fileHeader.Header.Get("Content-Type"),
		FileName:    fileHeader.Filename,
		Title:       c.PostForm("title"),
		Collection:  h.corpusCollection,
		UserID:      middleware.CurrentUserID(c),
	})
	if err != nil {
		log.Errorf("语料库摄取失败, job_id: %s, err: %v", jobID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "文档摄取失败", "job_id": jobID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job_id": jobID, "document": doc})
}

// ListDocuments 返回全部文档元数据。
func (h *AdminHandler) ListDocuments(c *gin.Context) {
	docs, err := h.documentService.List()
	if err != nil {
		log.Errorf("获取文档列表失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取文档列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// DeleteDocument 删除一条文档元数据记录。
func (h *AdminHandler) DeleteDocument(c *gin.Context) {
	docID := c.Param("docId")
	if err := h.documentService.Delete(docID); err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
			return
		}
		log.Errorf("删除文档失败, doc_id: %s, err: %v", docID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除文档失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}
