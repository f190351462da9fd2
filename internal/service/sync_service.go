package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Treasure123-school/school-web-treasure-sub002/config"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/dto"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/grading"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/model"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/repository"
	pkgerrors "github.com/Treasure123-school/school-web-treasure-sub002/pkg/errors"
	"github.com/Treasure123-school/school-web-treasure-sub002/pkg/metrics"
	"github.com/Treasure123-school/school-web-treasure-sub002/pkg/observability"
)

// ── 同步模块业务错误 ──

var (
	ErrAuditLogNotFound = errors.New("审计记录不存在")
)

// Emitter 同步成功后的实时事件出口
type Emitter interface {
	EmitReportCardChanged(p dto.ReportCardChangedPayload)
}

// SyncService 成绩同步业务接口
type SyncService interface {
	// SyncScore 把一次考试成绩同步到成绩单，结果以 SyncResult 返回而非 error：
	// 同步失败是业务结果，调用方（含重试扫描）据此决策，不走异常路径
	SyncScore(ctx context.Context, req *dto.ScoreSubmissionRequest, triggeredBy string) *dto.SyncResult
	// RetryFailedSyncs 扫描到期的重试记录并逐条重放
	RetryFailedSyncs(ctx context.Context) (*dto.RetryResult, error)
	// ManualResync 按审计记录 ID 人工重放一次同步（管理员修复通道）
	ManualResync(ctx context.Context, auditLogID, triggeredBy string) (*dto.SyncResult, error)
	// ListAuditLogs 审计记录查询
	ListAuditLogs(ctx context.Context, req *dto.AuditLogListRequest) ([]dto.AuditLogResponse, int64, error)
}

type syncService struct {
	cfg      *config.SyncConfig
	repo     *repository.Repository
	position PositionService
	emitter  Emitter
	logger   *zap.Logger
}

// NewSyncService 创建 SyncService 实例
func NewSyncService(
	cfg *config.SyncConfig,
	repo *repository.Repository,
	position PositionService,
	emitter Emitter,
	logger *zap.Logger,
) SyncService {
	return &syncService{
		cfg:      cfg,
		repo:     repo,
		position: position,
		emitter:  emitter,
		logger:   logger,
	}
}

// ════════════════════════════════════════════════════════════
// SyncScore — 幂等成绩同步
// ════════════════════════════════════════════════════════════
//
// 流程：
//  1. 计算幂等键（同步类型 + 学生 + 考试，无时间分量）
//  2. 幂等短路：窗口内同一（学生, 考试）已有成功记录 → 直接返回成功
//  3. 复用同键非终态审计记录（占用一次重试额度），没有则新建一条 pending
//     （审计写入失败只记日志，不阻塞同步本身）
//  4. 执行同步（校验 + 单事务聚合变更）
//  5. 按结果推进审计记录（success / retrying / failed，
//     输入类错误不重试，直接 failed）
//  6. 成功后尽力而为：班级名次重算 + 实时推送，失败不影响同步结果

func (s *syncService) SyncScore(ctx context.Context, req *dto.ScoreSubmissionRequest, triggeredBy string) *dto.SyncResult {
	syncType := req.SyncType
	if syncType == "" {
		syncType = model.SyncTypeExamSubmit
	}
	metrics.SyncAttempts.WithLabelValues(syncType).Inc()

	key := model.IdempotencyKey(syncType, req.StudentID, req.ExamID)

	// 幂等短路：以（学生, 考试）为键，不区分同步类型——
	// 同一份成绩刚同步成功，换种触发方式重放也视为已完成
	if recent, err := s.repo.SyncAudit.FindRecentSuccess(ctx, req.StudentID, req.ExamID, time.Now().Add(-s.cfg.RecentSuccessWindow)); err == nil {
		s.logger.Info("命中近期成功记录，幂等返回",
			zap.String("student_id", req.StudentID),
			zap.String("exam_id", req.ExamID),
			zap.String("audit_log_id", recent.SyncAuditLogID))
		return &dto.SyncResult{
			Success:          true,
			ReportCardID:     recent.ReportCardID,
			ReportCardItemID: recent.ReportCardItemID,
			Message:          "窗口内已同步，幂等返回",
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn("幂等短路查询失败，继续执行同步", zap.Error(err))
	}

	auditLog := s.obtainAuditLog(ctx, key, syncType, req, triggeredBy)

	result := s.performSync(ctx, req.StudentID, req.ExamID, req.Score, req.MaxScore, triggeredBy)
	s.recordOutcome(ctx, auditLog, result)
	return result
}

// obtainAuditLog 复用同键非终态记录（并发/重复触发合流），否则新建。
// 任一步失败都返回 nil：审计是旁路，不能因为它挡住成绩落库。
func (s *syncService) obtainAuditLog(ctx context.Context, key, syncType string, req *dto.ScoreSubmissionRequest, triggeredBy string) *model.SyncAuditLog {
	if active, err := s.repo.SyncAudit.FindActive(ctx, key); err == nil {
		// 重复触发合流到同一条记录，并占用一次重试额度
		active.RetryCount++
		active.Score = req.Score
		active.MaxScore = req.MaxScore
		return active
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询活动审计记录失败", zap.Error(err))
		return nil
	}

	log := &model.SyncAuditLog{
		IdempotencyKey: key,
		SyncType:       syncType,
		StudentID:      req.StudentID,
		ExamID:         req.ExamID,
		Status:         model.SyncStatusPending,
		MaxRetries:     s.cfg.MaxRetries,
		Score:          req.Score,
		MaxScore:       req.MaxScore,
	}
	if triggeredBy != "" {
		log.TriggeredBy = &triggeredBy
	}
	if err := s.repo.SyncAudit.Create(ctx, log); err != nil {
		s.logger.Error("创建审计记录失败，同步继续", zap.Error(err))
		observability.CaptureErr(err)
		return nil
	}
	return log
}

// performSync 校验 + 单事务聚合变更。所有失败以带错误码的 SyncResult 返回。
func (s *syncService) performSync(ctx context.Context, studentID, examID string, score, maxScore float64, triggeredBy string) (result *dto.SyncResult) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("同步 panic: %v", r)
			s.logger.Error("成绩同步发生未处理错误", zap.Any("panic", r))
			observability.CaptureErr(err)
			result = &dto.SyncResult{
				Success:   false,
				Message:   err.Error(),
				ErrorCode: dto.ErrCodeUnhandled,
			}
		}
	}()
	start := time.Now()

	// 1. 校验考试
	exam, err := s.repo.Exam.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return failure(dto.ErrCodeExamNotFound, "考试不存在")
		}
		s.logger.Error("查询考试失败", zap.Error(err))
		return failure(dto.ErrCodeTransactionFailed, "查询考试失败: "+err.Error())
	}
	if exam.SubjectID == "" || exam.ClassID == "" || exam.TermID == "" {
		return failure(dto.ErrCodeMissingExamFields, "考试缺少科目/班级/学期字段，无法同步")
	}

	// 2. 校验学生
	student, err := s.repo.Student.GetStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return failure(dto.ErrCodeStudentNotFound, "学生不存在")
		}
		s.logger.Error("查询学生失败", zap.Error(err))
		return failure(dto.ErrCodeTransactionFailed, "查询学生失败: "+err.Error())
	}

	// 3. 确定归属班级：优先学生档案，缺失时回退考试所属班级
	classID := exam.ClassID
	if student.ClassID != nil && *student.ClassID != "" {
		classID = *student.ClassID
	}
	if classID == "" {
		return failure(dto.ErrCodeIncompleteData, "无法确定学生归属班级")
	}

	// 4. 解析应修科目：建卡初始化与花名册漂移自愈共用一次解析
	subjects, err := s.repo.Student.ResolveSubjects(ctx, studentID, classID, exam.TermID)
	if err != nil {
		s.logger.Error("解析应修科目失败", zap.Error(err))
		return failure(dto.ErrCodeTransactionFailed, "解析应修科目失败: "+err.Error())
	}

	// 5. 单事务聚合变更
	var cardID, itemID string
	var skippedOverride bool
	txErr := s.repo.Tx.InTx(ctx, func(tx repository.TxContext) error {
		card, err := s.lockOrCreateReportCard(ctx, tx, studentID, classID, exam.TermID, subjects, triggeredBy)
		if err != nil {
			return err
		}
		if card.Locked {
			return pkgerrors.ErrRecordLocked
		}
		cardID = card.ReportCardID

		items, err := tx.GetItems(ctx, card.ReportCardID)
		if err != nil {
			return err
		}

		// 花名册漂移自愈：建卡之后新分配的科目在这里补行，
		// 本次考试的科目即使不在花名册也保证有行
		items, err = s.backfillMissingItems(ctx, tx, card.ReportCardID, items, subjects, exam.SubjectID)
		if err != nil {
			return err
		}

		item := findItem(items, exam.SubjectID)
		if item == nil {
			return fmt.Errorf("科目明细自愈后仍缺失: %s", exam.SubjectID)
		}
		itemID = item.ReportCardItemID

		if item.IsOverridden {
			// 人工覆写的科目对自动同步免疫
			skippedOverride = true
			return nil
		}

		// 6. 按考试类型归入对应分量并整体重算
		if exam.IsTestComponent() {
			item.TestScore = &score
			item.TestMaxScore = &maxScore
		} else {
			item.ExamScore = &score
			item.ExamMaxScore = &maxScore
		}
		scale := grading.GetScale(card.GradingScale)
		w := grading.WeightedScore(item.TestScore, item.TestMaxScore, item.ExamScore, item.ExamMaxScore, scale)
		item.TestWeighted = w.TestWeighted
		item.ExamWeighted = w.ExamWeighted
		item.ObtainedMarks = w.WeightedScore
		item.Percentage = w.Percentage
		g := grading.GradeFor(w.Percentage, card.GradingScale)
		item.Grade = &g.Grade
		item.Remarks = &g.Remarks
		if triggeredBy != "" {
			item.UpdatedBy = &triggeredBy
		}
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}

		// 7. 汇总回写：只有已有成绩的科目计入平均
		s.rollUp(card, items, item, scale)
		if triggeredBy != "" {
			card.UpdatedBy = &triggeredBy
		}
		return tx.UpdateReportCardTotals(ctx, card)
	})
	metrics.ObserveSync(time.Since(start))

	if txErr != nil {
		s.logger.Error("同步事务失败",
			zap.String("student_id", studentID),
			zap.String("exam_id", examID),
			zap.Error(txErr))
		return failure(dto.ErrCodeTransactionFailed, "同步事务失败: "+txErr.Error())
	}

	result = &dto.SyncResult{
		Success:          true,
		ReportCardID:     &cardID,
		ReportCardItemID: &itemID,
		Message:          "同步成功",
	}
	if skippedOverride {
		result.Message = "该科目已被人工覆写，跳过自动同步"
		return result
	}

	// 8. 尽力而为的后置动作：名次重算 + 实时推送
	if err := s.position.RecomputeClassPositions(ctx, classID, exam.TermID); err != nil {
		// 下一次同步会再触发重算，这里只记录
		s.logger.Warn("名次重算失败", zap.String("class_id", classID), zap.Error(err))
	}
	if s.emitter != nil {
		s.emitter.EmitReportCardChanged(dto.ReportCardChangedPayload{
			ReportCardID: cardID,
			StudentID:    studentID,
			ClassID:      classID,
			TermID:       exam.TermID,
			SubjectID:    exam.SubjectID,
		})
	}
	return result
}

// lockOrCreateReportCard 加行锁取成绩单；不存在时按花名册初始化一份新成绩单
func (s *syncService) lockOrCreateReportCard(ctx context.Context, tx repository.TxContext, studentID, classID, termID string, subjects []string, triggeredBy string) (*model.ReportCard, error) {
	card, err := tx.LockReportCard(ctx, studentID, termID)
	if err == nil {
		return card, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	card = &model.ReportCard{
		StudentID:    studentID,
		ClassID:      classID,
		TermID:       termID,
		GradingScale: grading.DefaultScaleName,
		Status:       model.ReportCardStatusDraft,
	}
	if triggeredBy != "" {
		card.CreatedBy = &triggeredBy
	}
	if err := tx.CreateReportCard(ctx, card); err != nil {
		return nil, err
	}

	// 按花名册为每个应修科目建一行空明细
	items := make([]model.ReportCardItem, 0, len(subjects))
	for _, subjectID := range subjects {
		items = append(items, model.ReportCardItem{
			ReportCardID: card.ReportCardID,
			SubjectID:    subjectID,
		})
	}
	if err := tx.CreateItems(ctx, items); err != nil {
		return nil, err
	}
	return card, nil
}

// backfillMissingItems 对照应修科目补齐缺失的明细行；有补行时重新读取明细
func (s *syncService) backfillMissingItems(ctx context.Context, tx repository.TxContext, reportCardID string, items []model.ReportCardItem, subjects []string, examSubjectID string) ([]model.ReportCardItem, error) {
	seen := make(map[string]struct{}, len(items))
	for i := range items {
		seen[items[i].SubjectID] = struct{}{}
	}

	var fresh []model.ReportCardItem
	for _, subjectID := range subjects {
		if _, ok := seen[subjectID]; ok {
			continue
		}
		seen[subjectID] = struct{}{}
		fresh = append(fresh, model.ReportCardItem{
			ReportCardID: reportCardID,
			SubjectID:    subjectID,
		})
	}
	if _, ok := seen[examSubjectID]; !ok {
		fresh = append(fresh, model.ReportCardItem{
			ReportCardID: reportCardID,
			SubjectID:    examSubjectID,
		})
	}
	if len(fresh) == 0 {
		return items, nil
	}

	if err := tx.CreateItems(ctx, fresh); err != nil {
		return nil, err
	}
	return tx.GetItems(ctx, reportCardID)
}

// rollUp 重算成绩单汇总。items 中被本次更新的行以 updated 为准。
// 未有任何科目成绩时 percentage/grade 保持 NULL，区分"未评分"与"零分"。
func (s *syncService) rollUp(card *model.ReportCard, items []model.ReportCardItem, updated *model.ReportCardItem, scale grading.Scale) {
	var obtained, total, pctSum float64
	var scored int

	for i := range items {
		item := &items[i]
		if item.ReportCardItemID == updated.ReportCardItemID {
			item = updated
		}
		if !item.HasScore() {
			continue
		}
		scored++
		obtained += item.ObtainedMarks
		pctSum += item.Percentage
		if item.TestScore != nil {
			total += scale.TestWeight
		}
		if item.ExamScore != nil {
			total += scale.ExamWeight
		}
	}

	card.ObtainedMarks = obtained
	card.TotalMarks = total
	if scored == 0 {
		card.Percentage = nil
		card.Grade = nil
		card.Remarks = nil
		return
	}
	pct := math.Round(pctSum/float64(scored)*10) / 10
	card.Percentage = &pct
	g := grading.GradeFor(pct, card.GradingScale)
	card.Grade = &g.Grade
	card.Remarks = &g.Remarks
}

// recordOutcome 按同步结果推进审计记录。
// 输入类错误是确定性失败，直接转入终态 failed，不排期重试；
// 可重试失败的退避间隔按 retry_count 查表，超出部分按最后一项封顶，
// 达到重试上限转入终态 failed。审计更新失败不影响同步结果。
func (s *syncService) recordOutcome(ctx context.Context, log *model.SyncAuditLog, result *dto.SyncResult) {
	if log == nil {
		if result.Success {
			metrics.SyncOutcomes.WithLabelValues(model.SyncStatusSuccess).Inc()
		}
		return
	}

	if result.Success {
		now := time.Now()
		log.Status = model.SyncStatusSuccess
		log.SyncedAt = &now
		log.NextRetryAt = nil
		log.ReportCardID = result.ReportCardID
		log.ReportCardItemID = result.ReportCardItemID
		log.ErrorCode = nil
		log.ErrorMessage = nil
		metrics.SyncOutcomes.WithLabelValues(model.SyncStatusSuccess).Inc()
	} else {
		log.ErrorCode = &result.ErrorCode
		log.ErrorMessage = &result.Message
		switch {
		case !isRetryable(result.ErrorCode):
			log.Status = model.SyncStatusFailed
			log.NextRetryAt = nil
			metrics.SyncOutcomes.WithLabelValues(model.SyncStatusFailed).Inc()
			s.logger.Warn("输入类错误，直接转入终态失败",
				zap.String("audit_log_id", log.SyncAuditLogID),
				zap.String("error_code", result.ErrorCode))
		case log.RetryCount >= log.MaxRetries:
			log.Status = model.SyncStatusFailed
			log.NextRetryAt = nil
			metrics.SyncOutcomes.WithLabelValues(model.SyncStatusFailed).Inc()
			s.logger.Error("同步达到重试上限，转入终态失败",
				zap.String("audit_log_id", log.SyncAuditLogID),
				zap.String("error_code", result.ErrorCode))
		default:
			next := time.Now().Add(s.backoffFor(log.RetryCount))
			log.Status = model.SyncStatusRetrying
			log.NextRetryAt = &next
		}
	}

	if err := s.repo.SyncAudit.Update(ctx, log); err != nil {
		s.logger.Error("推进审计记录失败", zap.String("audit_log_id", log.SyncAuditLogID), zap.Error(err))
		observability.CaptureErr(err)
	}
}

// isRetryable 只有可能由瞬时条件引起的失败才进入自动重试；
// 输入类错误（考试/学生缺失、字段不全、数据残缺）重放多少次结果都一样
func isRetryable(code string) bool {
	switch code {
	case dto.ErrCodeTransactionFailed, dto.ErrCodeUnhandled:
		return true
	default:
		return false
	}
}

// backoffFor 退避表查询，越界按最后一项封顶
func (s *syncService) backoffFor(retryCount int) time.Duration {
	if len(s.cfg.Backoff) == 0 {
		return time.Minute
	}
	if retryCount >= len(s.cfg.Backoff) {
		return s.cfg.Backoff[len(s.cfg.Backoff)-1]
	}
	return s.cfg.Backoff[retryCount]
}

// ════════════════════════════════════════════════════════════
// RetryFailedSyncs — 到期重试扫描
// ════════════════════════════════════════════════════════════

func (s *syncService) RetryFailedSyncs(ctx context.Context) (*dto.RetryResult, error) {
	metrics.RetrySweeps.Inc()

	batch := s.cfg.RetryBatchSize
	if batch <= 0 {
		batch = 50
	}
	logs, err := s.repo.SyncAudit.ListDueForRetry(ctx, time.Now(), batch)
	if err != nil {
		return nil, err
	}

	result := &dto.RetryResult{}
	for i := range logs {
		log := &logs[i]
		result.Processed++
		log.RetryCount++

		res := s.performSync(ctx, log.StudentID, log.ExamID, log.Score, log.MaxScore, "")
		s.recordOutcome(ctx, log, res)
		if res.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	if result.Processed > 0 {
		s.logger.Info("重试扫描完成",
			zap.Int("processed", result.Processed),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed))
	}
	return result, nil
}

// ════════════════════════════════════════════════════════════
// ManualResync — 管理员修复通道
// ════════════════════════════════════════════════════════════

func (s *syncService) ManualResync(ctx context.Context, auditLogID, triggeredBy string) (*dto.SyncResult, error) {
	log, err := s.repo.SyncAudit.GetByID(ctx, auditLogID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAuditLogNotFound
		}
		return nil, err
	}

	s.logger.Info("人工重放同步",
		zap.String("audit_log_id", auditLogID),
		zap.String("triggered_by", triggeredBy))
	metrics.SyncAttempts.WithLabelValues(model.SyncTypeAdminRepair).Inc()

	// 人工重放不占自动重试额度，失败也允许再次人工触发
	res := s.performSync(ctx, log.StudentID, log.ExamID, log.Score, log.MaxScore, triggeredBy)
	if res.Success {
		s.recordOutcome(ctx, log, res)
	} else {
		log.ErrorCode = &res.ErrorCode
		log.ErrorMessage = &res.Message
		log.Status = model.SyncStatusFailed
		log.NextRetryAt = nil
		if err := s.repo.SyncAudit.Update(ctx, log); err != nil {
			s.logger.Error("推进审计记录失败", zap.Error(err))
		}
		metrics.SyncOutcomes.WithLabelValues(model.SyncStatusFailed).Inc()
	}
	return res, nil
}

// ════════════════════════════════════════════════════════════
// ListAuditLogs — 审计查询
// ════════════════════════════════════════════════════════════

func (s *syncService) ListAuditLogs(ctx context.Context, req *dto.AuditLogListRequest) ([]dto.AuditLogResponse, int64, error) {
	filter := repository.AuditLogFilter{
		StudentID: req.StudentID,
		ExamID:    req.ExamID,
		SyncType:  req.SyncType,
		Status:    req.Status,
	}
	logs, total, err := s.repo.SyncAudit.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		return nil, 0, err
	}

	out := make([]dto.AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, toAuditLogResponse(&l))
	}
	return out, total, nil
}

func toAuditLogResponse(l *model.SyncAuditLog) dto.AuditLogResponse {
	resp := dto.AuditLogResponse{
		AuditLogID:       l.SyncAuditLogID,
		SyncType:         l.SyncType,
		StudentID:        l.StudentID,
		ExamID:           l.ExamID,
		Status:           l.Status,
		RetryCount:       l.RetryCount,
		MaxRetries:       l.MaxRetries,
		ErrorCode:        l.ErrorCode,
		ErrorMessage:     l.ErrorMessage,
		ReportCardID:     l.ReportCardID,
		ReportCardItemID: l.ReportCardItemID,
		CreatedAt:        l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        l.UpdatedAt.Format(time.RFC3339),
	}
	if l.NextRetryAt != nil {
		v := l.NextRetryAt.Format(time.RFC3339)
		resp.NextRetryAt = &v
	}
	return resp
}

// ── 小工具 ──

func failure(code, message string) *dto.SyncResult {
	return &dto.SyncResult{Success: false, ErrorCode: code, Message: message}
}

func findItem(items []model.ReportCardItem, subjectID string) *model.ReportCardItem {
	for i := range items {
		if items[i].SubjectID == subjectID {
			return &items[i]
		}
	}
	return nil
}
