package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Treasure123-school/school-web-treasure-sub002/internal/model"
)

// ExamRepository 考试数据访问接口
type ExamRepository interface {
	GetByID(ctx context.Context, id string) (*model.Exam, error)
	ListByClassTerm(ctx context.Context, classID, termID string) ([]model.Exam, error)
	SetPublished(ctx context.Context, id string, published bool) error
}

// ── Exam Repository 实现 ──

type examRepo struct {
	db *gorm.DB
}

func NewExamRepo(db *gorm.DB) ExamRepository {
	return &examRepo{db: db}
}

func (r *examRepo) GetByID(ctx context.Context, id string) (*model.Exam, error) {
	var exam model.Exam
	err := r.db.WithContext(ctx).
		Preload("Subject").
		Where("exam_id = ?", id).
		First(&exam).Error
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (r *examRepo) ListByClassTerm(ctx context.Context, classID, termID string) ([]model.Exam, error) {
	var exams []model.Exam
	err := r.db.WithContext(ctx).
		Preload("Subject").
		Where("class_id = ? AND term_id = ?", classID, termID).
		Order("starts_at ASC NULLS LAST, created_at ASC").
		Find(&exams).Error
	return exams, err
}

func (r *examRepo) SetPublished(ctx context.Context, id string, published bool) error {
	return r.db.WithContext(ctx).
		Model(&model.Exam{}).
		Where("exam_id = ?", id).
		Update("is_published", published).Error
}
