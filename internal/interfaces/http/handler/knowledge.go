package handler

import (
	"github.com/gin-gonic/gin"

	"llm-sentinel-api/internal/application/knowledge"
	"llm-sentinel-api/internal/interfaces/http/dto"
)

// defaultSearchTopK 知识库检索默认返回数量
const defaultSearchTopK = 5

// KnowledgeHandler 知识库处理器
type KnowledgeHandler struct {
	ingestor *knowledge.Ingestor
}

// NewKnowledgeHandler 创建知识库处理器
func NewKnowledgeHandler(ingestor *knowledge.Ingestor) *KnowledgeHandler {
	return &KnowledgeHandler{ingestor: ingestor}
}

// searchRequest 知识库检索请求
type searchRequest struct {
	Text string `json:"text" binding:"required"`
	K    int    `json:"k" binding:"omitempty,gt=0"`
}

// Search 知识库相似度检索，调试用途
// POST /v1/knowledge/search
func (h *KnowledgeHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	topK := req.K
	if topK <= 0 {
		topK = defaultSearchTopK
	}

	results, err := h.ingestor.Search(c.Request.Context(), req.Text, topK)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Success(c, gin.H{"results": results})
}
