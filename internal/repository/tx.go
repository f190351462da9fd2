package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Treasure123-school/school-web-treasure-sub002/internal/model"
)

// TxContext 成绩单事务内可用的变更操作。
// 刻意收窄：同步事务只拿得到这些方法，拿不到底层连接，
// 保证聚合变更（科目明细 + 成绩单汇总）要么全部落库要么全部回滚。
type TxContext interface {
	// LockReportCard 按 (student, term) 加行锁取成绩单，不存在时返回 gorm.ErrRecordNotFound
	LockReportCard(ctx context.Context, studentID, termID string) (*model.ReportCard, error)
	CreateReportCard(ctx context.Context, card *model.ReportCard) error
	CreateItems(ctx context.Context, items []model.ReportCardItem) error
	GetItems(ctx context.Context, reportCardID string) ([]model.ReportCardItem, error)
	UpdateItem(ctx context.Context, item *model.ReportCardItem) error
	UpdateReportCardTotals(ctx context.Context, card *model.ReportCard) error
}

// TxRunner 在单个数据库事务中执行 fn
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx TxContext) error) error
}

// ── gorm 实现 ──

type gormTxRunner struct {
	db *gorm.DB
}

func NewTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(tx TxContext) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTxContext{tx: tx})
	})
}

type gormTxContext struct {
	tx *gorm.DB
}

func (c *gormTxContext) LockReportCard(ctx context.Context, studentID, termID string) (*model.ReportCard, error) {
	var card model.ReportCard
	err := c.tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ? AND term_id = ?", studentID, termID).
		First(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (c *gormTxContext) CreateReportCard(ctx context.Context, card *model.ReportCard) error {
	return c.tx.WithContext(ctx).Create(card).Error
}

func (c *gormTxContext) CreateItems(ctx context.Context, items []model.ReportCardItem) error {
	if len(items) == 0 {
		return nil
	}
	return c.tx.WithContext(ctx).Create(&items).Error
}

func (c *gormTxContext) GetItems(ctx context.Context, reportCardID string) ([]model.ReportCardItem, error) {
	var items []model.ReportCardItem
	err := c.tx.WithContext(ctx).
		Where("report_card_id = ?", reportCardID).
		Find(&items).Error
	return items, err
}

func (c *gormTxContext) UpdateItem(ctx context.Context, item *model.ReportCardItem) error {
	return c.tx.WithContext(ctx).
		Model(item).
		Where("report_card_item_id = ?", item.ReportCardItemID).
		Updates(map[string]interface{}{
			"test_score":     item.TestScore,
			"test_max_score": item.TestMaxScore,
			"exam_score":     item.ExamScore,
			"exam_max_score": item.ExamMaxScore,
			"test_weighted":  item.TestWeighted,
			"exam_weighted":  item.ExamWeighted,
			"obtained_marks": item.ObtainedMarks,
			"percentage":     item.Percentage,
			"grade":          item.Grade,
			"remarks":        item.Remarks,
			"updated_by":     item.UpdatedBy,
		}).Error
}

func (c *gormTxContext) UpdateReportCardTotals(ctx context.Context, card *model.ReportCard) error {
	return c.tx.WithContext(ctx).
		Model(card).
		Where("report_card_id = ?", card.ReportCardID).
		Updates(map[string]interface{}{
			"obtained_marks": card.ObtainedMarks,
			"total_marks":    card.TotalMarks,
			"percentage":     card.Percentage,
			"grade":          card.Grade,
			"remarks":        card.Remarks,
			"updated_by":     card.UpdatedBy,
		}).Error
}
