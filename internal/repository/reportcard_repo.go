package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Treasure123-school/school-web-treasure-sub002/internal/model"
)

// ReportCardRepository 成绩单数据访问接口（事务外的读与排名回写）
type ReportCardRepository interface {
	GetByID(ctx context.Context, id string) (*model.ReportCard, error)
	GetByStudentTerm(ctx context.Context, studentID, termID string) (*model.ReportCard, error)
	ListByClassTerm(ctx context.Context, classID, termID string) ([]model.ReportCard, error)
	UpdatePosition(ctx context.Context, reportCardID string, position, totalStudents int) error
}

// ── ReportCard Repository 实现 ──

type reportCardRepo struct {
	db *gorm.DB
}

func NewReportCardRepo(db *gorm.DB) ReportCardRepository {
	return &reportCardRepo{db: db}
}

func (r *reportCardRepo) GetByID(ctx context.Context, id string) (*model.ReportCard, error) {
	var card model.ReportCard
	err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Items.Subject").
		Where("report_card_id = ?", id).
		First(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *reportCardRepo) GetByStudentTerm(ctx context.Context, studentID, termID string) (*model.ReportCard, error) {
	var card model.ReportCard
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Subject").
		Where("student_id = ? AND term_id = ?", studentID, termID).
		First(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *reportCardRepo) ListByClassTerm(ctx context.Context, classID, termID string) ([]model.ReportCard, error) {
	var cards []model.ReportCard
	err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Items").
		Preload("Items.Subject").
		Where("class_id = ? AND term_id = ?", classID, termID).
		Find(&cards).Error
	return cards, err
}

func (r *reportCardRepo) UpdatePosition(ctx context.Context, reportCardID string, position, totalStudents int) error {
	return r.db.WithContext(ctx).
		Model(&model.ReportCard{}).
		Where("report_card_id = ?", reportCardID).
		Updates(map[string]interface{}{
			"position":                position,
			"total_students_in_class": totalStudents,
		}).Error
}
