package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Treasure123-school/school-web-treasure-sub002/internal/dto"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/service"
	"github.com/Treasure123-school/school-web-treasure-sub002/pkg/response"
)

// SyncHandler 成绩同步模块 HTTP 处理器
type SyncHandler struct {
	syncSvc service.SyncService
}

// NewSyncHandler 创建 SyncHandler
func NewSyncHandler(syncSvc service.SyncService) *SyncHandler {
	return &SyncHandler{syncSvc: syncSvc}
}

// SyncScore 提交一次成绩同步
// POST /api/v1/sync/score
// 同步失败不是 HTTP 错误：结果带错误码以 200 返回，语义由 success 字段表达
func (h *SyncHandler) SyncScore(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.ScoreSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "请求参数无效: "+err.Error())
		return
	}
	if req.Score > req.MaxScore {
		response.BadRequest(c, 10001, "成绩不能超过满分")
		return
	}

	result := h.syncSvc.SyncScore(c.Request.Context(), &req, userID)
	response.OK(c, result)
}

// RetryFailedSyncs 立即执行一轮重试扫描
// POST /api/v1/sync/retry
func (h *SyncHandler) RetryFailedSyncs(c *gin.Context) {
	result, err := h.syncSvc.RetryFailedSyncs(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, result)
}

// ManualResync 按审计记录人工重放同步
// POST /api/v1/sync/audit-logs/:id/resync
func (h *SyncHandler) ManualResync(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.syncSvc.ManualResync(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, service.ErrAuditLogNotFound) {
			response.NotFound(c, 17101, "审计记录不存在")
			return
		}
		response.InternalError(c)
		return
	}
	response.OK(c, result)
}

// ListAuditLogs 审计记录分页查询
// GET /api/v1/sync/audit-logs
func (h *SyncHandler) ListAuditLogs(c *gin.Context) {
	var req dto.AuditLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "查询参数无效: "+err.Error())
		return
	}

	logs, total, err := h.syncSvc.ListAuditLogs(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OKPage(c, logs, total, req.GetPage(), req.GetPageSize())
}
