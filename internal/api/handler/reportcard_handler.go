package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Treasure123-school/school-web-treasure-sub002/internal/service"
	"github.com/Treasure123-school/school-web-treasure-sub002/pkg/response"
)

// ReportCardHandler 成绩单模块 HTTP 处理器
type ReportCardHandler struct {
	reportCardSvc service.ReportCardService
}

// NewReportCardHandler 创建 ReportCardHandler
func NewReportCardHandler(reportCardSvc service.ReportCardService) *ReportCardHandler {
	return &ReportCardHandler{reportCardSvc: reportCardSvc}
}

// GetByID 按 ID 查询成绩单（含明细）
// GET /api/v1/report-cards/:id
func (h *ReportCardHandler) GetByID(c *gin.Context) {
	card, err := h.reportCardSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, card)
}

// GetStudentReportCard 查询学生某学期成绩单
// GET /api/v1/report-cards/student/:student_id?term_id=xxx
func (h *ReportCardHandler) GetStudentReportCard(c *gin.Context) {
	termID := c.Query("term_id")
	if termID == "" {
		response.BadRequest(c, 10001, "term_id 不能为空")
		return
	}

	card, err := h.reportCardSvc.GetStudentReportCard(c.Request.Context(), c.Param("student_id"), termID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, card)
}

// ListClass 查询班级成绩单列表（按名次升序）
// GET /api/v1/report-cards/class/:class_id?term_id=xxx
func (h *ReportCardHandler) ListClass(c *gin.Context) {
	termID := c.Query("term_id")
	if termID == "" {
		response.BadRequest(c, 10001, "term_id 不能为空")
		return
	}

	cards, err := h.reportCardSvc.ListClass(c.Request.Context(), c.Param("class_id"), termID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, cards)
}

func (h *ReportCardHandler) handleError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrReportCardNotFound) {
		response.NotFound(c, 17201, "成绩单不存在")
		return
	}
	response.InternalError(c)
}
