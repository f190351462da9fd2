package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Treasure123-school/school-web-treasure-sub002/internal/model"
)

// AuditLogFilter 审计记录查询条件（零值字段不过滤）
type AuditLogFilter struct {
	StudentID string
	ExamID    string
	SyncType  string
	Status    string
}

// SyncAuditRepository 同步审计日志数据访问接口
type SyncAuditRepository interface {
	Create(ctx context.Context, log *model.SyncAuditLog) error
	GetByID(ctx context.Context, id string) (*model.SyncAuditLog, error)
	// FindActive 查找同一幂等键下尚未到终态的记录（pending / retrying）
	FindActive(ctx context.Context, idempotencyKey string) (*model.SyncAuditLog, error)
	// FindRecentSuccess 查找 since 之后同一（学生, 考试）的成功记录，用于幂等短路。
	// 不区分同步类型：同一份成绩换个触发方式重放也算重复触发
	FindRecentSuccess(ctx context.Context, studentID, examID string, since time.Time) (*model.SyncAuditLog, error)
	Update(ctx context.Context, log *model.SyncAuditLog) error
	// ListDueForRetry 列出已到重试时间的失败中记录，按 next_retry_at 升序
	ListDueForRetry(ctx context.Context, now time.Time, limit int) ([]model.SyncAuditLog, error)
	List(ctx context.Context, filter AuditLogFilter, offset, limit int) ([]model.SyncAuditLog, int64, error)
}

// ── SyncAudit Repository 实现 ──

type syncAuditRepo struct {
	db *gorm.DB
}

func NewSyncAuditRepo(db *gorm.DB) SyncAuditRepository {
	return &syncAuditRepo{db: db}
}

func (r *syncAuditRepo) Create(ctx context.Context, log *model.SyncAuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *syncAuditRepo) GetByID(ctx context.Context, id string) (*model.SyncAuditLog, error) {
	var log model.SyncAuditLog
	err := r.db.WithContext(ctx).
		Where("sync_audit_log_id = ?", id).
		First(&log).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *syncAuditRepo) FindActive(ctx context.Context, idempotencyKey string) (*model.SyncAuditLog, error) {
	var log model.SyncAuditLog
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ? AND status IN ?", idempotencyKey,
			[]string{model.SyncStatusPending, model.SyncStatusRetrying}).
		Order("created_at DESC").
		First(&log).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *syncAuditRepo) FindRecentSuccess(ctx context.Context, studentID, examID string, since time.Time) (*model.SyncAuditLog, error) {
	var log model.SyncAuditLog
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND exam_id = ? AND status = ? AND synced_at >= ?",
			studentID, examID, model.SyncStatusSuccess, since).
		Order("synced_at DESC").
		First(&log).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *syncAuditRepo) Update(ctx context.Context, log *model.SyncAuditLog) error {
	return r.db.WithContext(ctx).
		Model(log).
		Where("sync_audit_log_id = ?", log.SyncAuditLogID).
		Updates(map[string]interface{}{
			"status":              log.Status,
			"retry_count":         log.RetryCount,
			"report_card_id":      log.ReportCardID,
			"report_card_item_id": log.ReportCardItemID,
			"error_code":          log.ErrorCode,
			"error_message":       log.ErrorMessage,
			"synced_at":           log.SyncedAt,
			"next_retry_at":       log.NextRetryAt,
			"updated_at":          time.Now(),
		}).Error
}

func (r *syncAuditRepo) ListDueForRetry(ctx context.Context, now time.Time, limit int) ([]model.SyncAuditLog, error) {
	var logs []model.SyncAuditLog
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?",
			model.SyncStatusRetrying, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (r *syncAuditRepo) List(ctx context.Context, filter AuditLogFilter, offset, limit int) ([]model.SyncAuditLog, int64, error) {
	var logs []model.SyncAuditLog
	var total int64

	db := r.db.WithContext(ctx).Model(&model.SyncAuditLog{})
	if filter.StudentID != "" {
		db = db.Where("student_id = ?", filter.StudentID)
	}
	if filter.ExamID != "" {
		db = db.Where("exam_id = ?", filter.ExamID)
	}
	if filter.SyncType != "" {
		db = db.Where("sync_type = ?", filter.SyncType)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, total, err
}
