package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/Treasure123-school/school-web-treasure-sub002/internal/repository"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/service"
	"github.com/Treasure123-school/school-web-treasure-sub002/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportClassReportCards 导出班级成绩汇总
// GET /api/v1/export/report-cards?class_id=xxx&term_id=xxx
func (h *ExportHandler) ExportClassReportCards(c *gin.Context) {
	classID, termID := c.Query("class_id"), c.Query("term_id")
	if classID == "" || termID == "" {
		response.BadRequest(c, 10001, "class_id 与 term_id 不能为空")
		return
	}

	buf, filename, err := h.exportSvc.ExportClassReportCards(c.Request.Context(), classID, termID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}
	writeDownload(c, contentTypeXLSX, filename, buf.Bytes())
}

// ExportAuditLogs 导出同步审计记录
// GET /api/v1/export/audit-logs
func (h *ExportHandler) ExportAuditLogs(c *gin.Context) {
	filter := repository.AuditLogFilter{
		StudentID: c.Query("student_id"),
		ExamID:    c.Query("exam_id"),
		SyncType:  c.Query("sync_type"),
		Status:    c.Query("status"),
	}

	buf, filename, err := h.exportSvc.ExportAuditLogs(c.Request.Context(), filter)
	if err != nil {
		h.handleExportError(c, err)
		return
	}
	writeDownload(c, contentTypeXLSX, filename, buf.Bytes())
}

// ExportExamCalendar 导出学生考试安排日历
// GET /api/v1/export/exam-calendar?student_id=xxx&term_id=xxx
func (h *ExportHandler) ExportExamCalendar(c *gin.Context) {
	studentID, termID := c.Query("student_id"), c.Query("term_id")
	if studentID == "" || termID == "" {
		response.BadRequest(c, 10001, "student_id 与 term_id 不能为空")
		return
	}

	buf, filename, err := h.exportSvc.ExportExamCalendar(c.Request.Context(), studentID, termID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}
	writeDownload(c, contentTypeICS, filename, buf.Bytes())
}

func writeDownload(c *gin.Context, contentType, filename string, data []byte) {
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, contentType, data)
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoReportCards):
		response.NotFound(c, 16101, "该班级该学期暂无成绩单")
	case errors.Is(err, service.ErrExportNoExams):
		response.NotFound(c, 16102, "该班级该学期暂无考试安排")
	case errors.Is(err, service.ErrExportStudentGone):
		response.NotFound(c, 16103, "学生不存在")
	default:
		response.InternalError(c)
	}
}
